package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/mohammad-safakhou/researchflow/provider"
	fetchmodels "github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
	"go.uber.org/zap"
)

const noContent = "No content available."

const writerPrompt = `You are a research analyst. Write a comprehensive research report on '%[1]s'. Use the following sources:

%[2]s

Format the report in markdown with:

# %[1]s

## Introduction

## Key Findings
(5-7 bullet points with insights)

## Detailed Analysis

## Conclusion

Cite sources naturally in text using the source URLs provided.`

// Writer drafts a markdown report from the scraped pages.
type Writer struct {
	base
	llm   provider.Provider
	model string
}

func NewWriter(st store.Store, llm provider.Provider, model string, logger *zap.Logger, tele *telemetry.Telemetry) *Writer {
	return &Writer{base: newBase("writer", StepWriterFailed, st, logger, tele), llm: llm, model: model}
}

func (w *Writer) Run(ctx context.Context, st *AgentState) {
	w.traced(ctx, st, func(ctx context.Context) error { return w.run(ctx, st) })
}

func (w *Writer) run(ctx context.Context, st *AgentState) error {
	log := w.logger.With(zap.String("session_id", st.SessionID), zap.String("topic", st.Topic))
	log.Info("writer started", zap.Int("retry_count", st.RetryCount))

	sess, err := w.loadSession(ctx, st.SessionID)
	if err != nil {
		return err
	}
	if err := w.mark(ctx, sess, models.StatusWriterRunning, 40, w.name); err != nil {
		return err
	}

	if len(st.ScrapedContent) == 0 {
		log.Warn("no scraped content available")
	}
	sources := BuildContext(st.ScrapedContent)
	log.Info("context built", zap.Int("sources", len(st.ScrapedContent)), zap.Int("chars", len(sources)))

	draft, err := w.llm.Complete(ctx, WriterPrompt(st.Topic, sources), w.model)
	w.tele.RecordLLM(err)
	if err != nil {
		return err
	}
	log.Info("draft generated", zap.Int("chars", len(draft)))

	if err := w.mark(ctx, sess, models.StatusWriterComplete, 66, w.name); err != nil {
		return err
	}

	st.DraftReport = draft
	st.CurrentStep = StepWriterComplete
	st.Error = nil
	return nil
}

// BuildContext renders scraped pages as numbered source blocks, in order and
// untruncated.
func BuildContext(pages []fetchmodels.Result) string {
	if len(pages) == 0 {
		return noContent
	}
	parts := make([]string, 0, len(pages))
	for i, p := range pages {
		title := p.Title
		if title == "" {
			title = "Untitled"
		}
		url := p.URL
		if url == "" {
			url = "N/A"
		}
		parts = append(parts, fmt.Sprintf("\n--- Source %d: %s ---\nURL: %s\n%s\n", i+1, title, url, p.Content))
	}
	return strings.Join(parts, "\n")
}

func WriterPrompt(topic, sources string) string {
	return fmt.Sprintf(writerPrompt, topic, sources)
}
