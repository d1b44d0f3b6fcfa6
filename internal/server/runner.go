package server

import (
	"context"
	"fmt"
	"sync"

	core "github.com/mohammad-safakhou/researchflow/internal/agent/core"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"go.uber.org/zap"
)

// Executor runs one session to completion.
type Executor interface {
	Run(ctx context.Context, sessionID, topic, depth string) *core.AgentState
}

// Runner executes pipeline runs in the background so requests return
// immediately. Started runs are not cancelled; Wait lets shutdown drain them.
type Runner struct {
	exec   Executor
	store  store.Store
	logger *zap.Logger
	base   context.Context
	wg     sync.WaitGroup
}

func NewRunner(exec Executor, st store.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exec: exec, store: st, logger: logger.Named("runner"), base: context.Background()}
}

// Launch starts a run for the session and returns at once.
func (r *Runner) Launch(sessionID, topic, depth string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(sessionID)
		r.exec.Run(r.base, sessionID, topic, depth)
	}()
}

// Wait blocks until every launched run has returned or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) recover(sessionID string) {
	rec := recover()
	if rec == nil {
		return
	}
	msg := fmt.Sprintf("Pipeline crashed: %v", rec)
	r.logger.Error("pipeline panic", zap.String("session_id", sessionID), zap.Any("panic", rec), zap.Stack("stack"))

	sess, err := r.store.GetSession(r.base, sessionID)
	if err != nil {
		r.logger.Error("failed to load session after panic", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	sess.Status = models.StatusFailed
	sess.ErrorMessage = models.StrPtr(msg)
	if err := r.store.SaveSession(r.base, sess); err != nil {
		r.logger.Error("failed to mark session failed after panic", zap.String("session_id", sessionID), zap.Error(err))
	}
}
