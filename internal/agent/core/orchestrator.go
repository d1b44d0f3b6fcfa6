package core

import (
	"context"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/provider"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch"
	"github.com/mohammad-safakhou/researchflow/tools/web_search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer trace.Tracer = otel.Tracer("researchflow/internal/agent/core")

// Pipeline drives researcher, writer and editor for one session at a time.
// It holds no per-run state and may be shared by concurrent runs.
type Pipeline struct {
	researcher Node
	writer     Node
	editor     Node
	logger     *zap.Logger
	tele       *telemetry.Telemetry
}

// NewPipeline wires the three nodes from their collaborators.
func NewPipeline(cfg *config.Config, st store.Store, search web_search.WebSearcher, fetcher web_fetch.WebFetcher, llm provider.Provider, logger *zap.Logger, tele *telemetry.Telemetry) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewPipelineFromNodes(
		NewResearcher(st, search, fetcher, logger, tele),
		NewWriter(st, llm, cfg.LLM.Model, logger, tele),
		NewEditor(st, llm, cfg.LLM.Model, logger, tele),
		logger, tele,
	)
}

func NewPipelineFromNodes(researcher, writer, editor Node, logger *zap.Logger, tele *telemetry.Telemetry) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		researcher: researcher,
		writer:     writer,
		editor:     editor,
		logger:     logger.Named("pipeline"),
		tele:       tele,
	}
}

// Run executes one session to a terminal step and returns the final state.
// Node failures are recorded on the state and the session; Run itself never
// fails.
func (p *Pipeline) Run(ctx context.Context, sessionID, topic, depth string) *AgentState {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("topic", topic),
		))
	defer span.End()

	log := p.logger.With(zap.String("session_id", sessionID), zap.String("topic", topic))
	log.Info("pipeline started")

	st := NewAgentState(sessionID, topic, depth)
	p.drive(ctx, st)

	outcome := telemetry.OutcomeSuccess
	if st.CurrentStep != StepComplete {
		outcome = telemetry.OutcomeFailure
		msg := ""
		if st.Error != nil {
			msg = *st.Error
		}
		span.SetStatus(codes.Error, msg)
		log.Error("pipeline failed", zap.String("step", string(st.CurrentStep)), zap.String("error", msg))
	} else {
		log.Info("pipeline completed", zap.Int("retry_count", st.RetryCount))
	}
	p.tele.RecordRun(outcome)
	return st
}

// drive is the state machine: researcher, then writer and editor until the
// editor stops asking for rewrites. The writer runs at most MaxRewrites+1
// times.
func (p *Pipeline) drive(ctx context.Context, st *AgentState) {
	p.researcher.Run(ctx, st)
	if st.CurrentStep.Failed() {
		return
	}
	for pass := 0; pass <= MaxRewrites; pass++ {
		p.writer.Run(ctx, st)
		if st.CurrentStep.Failed() {
			return
		}
		p.editor.Run(ctx, st)
		if st.CurrentStep != StepNeedsRewrite {
			return
		}
	}
	// The editor never requests a rewrite once RetryCount reaches
	// MaxRewrites, so leaving the loop here means a node broke that rule.
	p.logger.Error("rewrite budget exceeded", zap.String("session_id", st.SessionID), zap.Int("retry_count", st.RetryCount))
}
