package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Node is one stage of the pipeline. Run mutates st in place and reports
// failure through st.Error and a *_failed step, never by returning.
type Node interface {
	Name() string
	Run(ctx context.Context, st *AgentState)
}

// base carries what every node needs: the session store, its logger, metrics
// and the name used in failure messages.
type base struct {
	name       string
	failedStep Step
	store      store.Store
	logger     *zap.Logger
	tele       *telemetry.Telemetry
}

func newBase(name string, failed Step, st store.Store, logger *zap.Logger, tele *telemetry.Telemetry) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{name: name, failedStep: failed, store: st, logger: logger.Named(name), tele: tele}
}

func (b base) Name() string { return b.name }

// loadSession returns nil without error when the session does not exist; the
// node then runs without status updates.
func (b base) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := b.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		b.logger.Warn("session not found, progress will not be recorded", zap.String("session_id", sessionID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// mark writes status, progress and agent onto sess. A nil sess is a no-op.
func (b base) mark(ctx context.Context, sess *models.Session, status string, progress int, agent string) error {
	if sess == nil {
		return nil
	}
	sess.Status = status
	sess.Progress = progress
	sess.CurrentAgent = models.StrPtr(agent)
	return b.store.SaveSession(ctx, *sess)
}

// fail records err on the state and mirrors it onto the session. Errors
// while writing the session are logged only.
func (b base) fail(ctx context.Context, st *AgentState, err error) {
	msg := fmt.Sprintf("%s node failed: %v", capitalize(b.name), err)
	b.logger.Error(msg, zap.String("session_id", st.SessionID))
	st.Error = models.StrPtr(msg)
	st.CurrentStep = b.failedStep

	if st.SessionID == "" {
		return
	}
	sess, lerr := b.store.GetSession(ctx, st.SessionID)
	if lerr != nil {
		if !errors.Is(lerr, store.ErrNotFound) {
			b.logger.Error("failed to load session for failure update", zap.String("session_id", st.SessionID), zap.Error(lerr))
		}
		return
	}
	sess.Status = models.StatusFailed
	sess.ErrorMessage = models.StrPtr(msg)
	if serr := b.store.SaveSession(ctx, sess); serr != nil {
		b.logger.Error("failed to update session status in store", zap.String("session_id", st.SessionID), zap.Error(serr))
	}
}

// traced runs fn inside a span named after the node and records its wall
// time.
func (b base) traced(ctx context.Context, st *AgentState, fn func(ctx context.Context) error) {
	ctx, span := tracer.Start(ctx, "pipeline."+b.name,
		trace.WithAttributes(
			attribute.String("session.id", st.SessionID),
			attribute.Int("retry.count", st.RetryCount),
		))
	defer span.End()
	start := time.Now()
	defer func() { b.tele.ObserveNode(b.name, time.Since(start)) }()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.fail(ctx, st, err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
