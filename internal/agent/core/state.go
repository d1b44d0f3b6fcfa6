package core

import (
	fetchmodels "github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/researchflow/tools/web_search/models"
)

// Step is the fine-grained phase tag of a run. It is more detailed than the
// session status and never persisted.
type Step string

const (
	StepPending            Step = "pending"
	StepResearcherComplete Step = "researcher_complete"
	StepResearcherFailed   Step = "researcher_failed"
	StepWriterComplete     Step = "writer_complete"
	StepWriterFailed       Step = "writer_failed"
	StepNeedsRewrite       Step = "needs_rewrite"
	StepComplete           Step = "complete"
	StepEditorFailed       Step = "editor_failed"
)

// Failed reports whether s is one of the *_failed tags.
func (s Step) Failed() bool {
	return s == StepResearcherFailed || s == StepWriterFailed || s == StepEditorFailed
}

const (
	// MaxRewrites bounds how often the editor may send a draft back.
	MaxRewrites = 2
	// MinWordCount is the draft length the editor accepts without a rewrite
	// while rewrites remain.
	MinWordCount = 500
	// SearchResultCap is the number of search results requested per run.
	SearchResultCap = 8
	// ScrapeLimit is how many of the top search results get scraped.
	ScrapeLimit = 5
)

// AgentState is the working memory of one pipeline run. It is owned by a
// single goroutine and discarded when the run ends.
type AgentState struct {
	SessionID      string
	Topic          string
	Depth          string
	SearchResults  []searchmodels.Result
	ScrapedContent []fetchmodels.Result // successful scrapes only
	DraftReport    string
	FinalReport    string
	CurrentStep    Step
	RetryCount     int
	Error          *string
}

func NewAgentState(sessionID, topic, depth string) *AgentState {
	return &AgentState{
		SessionID:      sessionID,
		Topic:          topic,
		Depth:          depth,
		SearchResults:  []searchmodels.Result{},
		ScrapedContent: []fetchmodels.Result{},
		CurrentStep:    StepPending,
	}
}
