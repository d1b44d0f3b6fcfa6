package models

import (
	"time"
)

// Session statuses as exposed through the status endpoint.
const (
	StatusPending            = "pending"
	StatusResearcherRunning  = "researcher_running"
	StatusResearcherComplete = "researcher_complete"
	StatusWriterRunning      = "writer_running"
	StatusWriterComplete     = "writer_complete"
	StatusEditorRunning      = "editor_running"
	StatusComplete           = "complete"
	StatusFailed             = "failed"
)

// DefaultDepth is used when a research request omits depth.
const DefaultDepth = "medium"

// Session tracks one pipeline run. It is created in the pending state and
// mutated by each node until it reaches complete or failed.
type Session struct {
	SessionID    string    `json:"session_id" bson:"session_id"`
	Topic        string    `json:"topic" bson:"topic"`
	Depth        string    `json:"depth" bson:"depth"`
	Status       string    `json:"status" bson:"status"`
	Progress     int       `json:"progress" bson:"progress"`
	CurrentAgent *string   `json:"current_agent" bson:"current_agent"`
	ReportID     *string   `json:"report_id" bson:"report_id"`
	ErrorMessage *string   `json:"error_message" bson:"error_message"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Source is a search hit attached to a report. Provider names the search
// backend that returned it.
type Source struct {
	URL      string `json:"url" bson:"url"`
	Title    string `json:"title" bson:"title"`
	Snippet  string `json:"snippet" bson:"snippet"`
	Provider string `json:"source,omitempty" bson:"source,omitempty"`
}

// Report is the final markdown artifact of a completed session. Reports are
// never updated once inserted.
type Report struct {
	ReportID  string    `json:"report_id" bson:"report_id"`
	SessionID string    `json:"session_id" bson:"session_id"`
	Topic     string    `json:"topic" bson:"topic"`
	Content   string    `json:"content" bson:"content"`
	Sources   []Source  `json:"sources" bson:"sources"`
	WordCount int       `json:"word_count" bson:"word_count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// StrPtr returns a pointer to a copy of s.
func StrPtr(s string) *string { return &s }
