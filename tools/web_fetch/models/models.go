package models

// Result is the outcome of scraping one URL. Error is set only when Success
// is false.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Failed builds an unsuccessful result for url.
func Failed(url, msg string) Result {
	return Result{URL: url, Success: false, Error: msg}
}
