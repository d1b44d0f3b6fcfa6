package models

// Result is one search hit. Source names the provider that produced it.
type Result struct {
	URL     string `json:"url" bson:"url"`
	Title   string `json:"title" bson:"title"`
	Snippet string `json:"snippet" bson:"snippet"`
	Source  string `json:"source" bson:"source"`
}
