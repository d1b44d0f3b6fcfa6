package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/mohammad-safakhou/researchflow/provider"
	searchmodels "github.com/mohammad-safakhou/researchflow/tools/web_search/models"
	"go.uber.org/zap"
)

const editorPrompt = `Review and polish this research report for clarity, grammar, and flow:

%s

Improve the structure, fix any grammatical errors, enhance readability, and ensure all sections flow logically. Maintain all citations and sources.`

// Editor gates draft length and polishes accepted drafts into a stored
// report.
type Editor struct {
	base
	llm   provider.Provider
	model string
	now   func() time.Time
	newID func() string
}

func NewEditor(st store.Store, llm provider.Provider, model string, logger *zap.Logger, tele *telemetry.Telemetry) *Editor {
	return &Editor{
		base:  newBase("editor", StepEditorFailed, st, logger, tele),
		llm:   llm,
		model: model,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (e *Editor) Run(ctx context.Context, st *AgentState) {
	e.traced(ctx, st, func(ctx context.Context) error { return e.run(ctx, st) })
}

// NeedsRewrite is the quality gate: short drafts go back to the writer while
// rewrites remain. Once the budget is spent any draft is accepted.
func NeedsRewrite(wordCount, retryCount int) bool {
	return wordCount < MinWordCount && retryCount < MaxRewrites
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int { return len(strings.Fields(s)) }

func (e *Editor) run(ctx context.Context, st *AgentState) error {
	log := e.logger.With(zap.String("session_id", st.SessionID))
	log.Info("editor started")

	sess, err := e.loadSession(ctx, st.SessionID)
	if err != nil {
		return err
	}
	if err := e.mark(ctx, sess, models.StatusEditorRunning, 70, e.name); err != nil {
		return err
	}

	words := WordCount(st.DraftReport)
	log.Info("draft measured", zap.Int("word_count", words))

	if NeedsRewrite(words, st.RetryCount) {
		log.Warn("draft too short, requesting rewrite", zap.Int("word_count", words), zap.Int("retry_count", st.RetryCount))
		st.RetryCount++
		st.CurrentStep = StepNeedsRewrite
		e.tele.RecordRewrite()
		// current agent stays "editor" while the writer is re-queued
		return e.mark(ctx, sess, models.StatusWriterRunning, 50, e.name)
	}

	final, err := e.llm.Complete(ctx, fmt.Sprintf(editorPrompt, st.DraftReport), e.model)
	e.tele.RecordLLM(err)
	if err != nil {
		return err
	}
	log.Info("final report generated", zap.Int("chars", len(final)))

	report := models.Report{
		ReportID:  e.newID(),
		SessionID: st.SessionID,
		Topic:     st.Topic,
		Content:   final,
		Sources:   ToSources(st.SearchResults),
		WordCount: WordCount(final),
		CreatedAt: e.now(),
	}
	if err := e.store.InsertReport(ctx, report); err != nil {
		return err
	}
	log.Info("report saved", zap.String("report_id", report.ReportID), zap.Int("word_count", report.WordCount))

	if sess != nil {
		sess.Status = models.StatusComplete
		sess.Progress = 100
		sess.CurrentAgent = models.StrPtr(e.name)
		sess.ReportID = models.StrPtr(report.ReportID)
		if err := e.store.SaveSession(ctx, *sess); err != nil {
			return err
		}
	}

	st.FinalReport = final
	st.CurrentStep = StepComplete
	st.Error = nil
	return nil
}

// ToSources copies search results into report sources, order preserved.
func ToSources(results []searchmodels.Result) []models.Source {
	out := make([]models.Source, 0, len(results))
	for _, r := range results {
		out = append(out, models.Source{URL: r.URL, Title: r.Title, Snippet: r.Snippet, Provider: r.Source})
	}
	return out
}
