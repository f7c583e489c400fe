package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/copyleftdev/xsession/internal/actions"
	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Runner executes one request end to end: launch, establish the session,
// run the action, persist state, close. Runs are serialized; the browser and
// the state file belong to a single run at a time.
type Runner struct {
	launcher    Launcher
	establisher *session.Establisher
	executor    *actions.Executor
	creds       actiontypes.Credentials
	logger      *zap.Logger
	sem         *semaphore.Weighted
}

func NewRunner(launcher Launcher, establisher *session.Establisher, executor *actions.Executor, creds actiontypes.Credentials, logger *zap.Logger) *Runner {
	return &Runner{
		launcher:    launcher,
		establisher: establisher,
		executor:    executor,
		creds:       creds,
		logger:      logger.Named("runner"),
		sem:         semaphore.NewWeighted(1),
	}
}

// Run always returns an outcome. Failures are reported in it, never raised.
func (r *Runner) Run(ctx context.Context, req actiontypes.Request) (out actiontypes.Outcome) {
	logger := r.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("action", string(req.Name)),
	)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Run panicked", zap.Any("panic", p), zap.Stack("stack"))
			out = actiontypes.Failure(actiontypes.Newf(actiontypes.KindAction, fmt.Errorf("panic: %v", p),
				"%s failed: panic: %v", req.Name.Title(), p))
		}
		logger.Info("Run finished",
			zap.Bool("success", out.Success),
			zap.String("error", out.Error),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	// Argument errors need no browser at all.
	if err := r.executor.Validate(req); err != nil {
		return actiontypes.Failure(err)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return actiontypes.Failure(actiontypes.Newf(actiontypes.KindAction, err, "%s failed: %v", req.Name.Title(), err))
	}
	defer r.sem.Release(1)

	sess, err := r.launcher.Launch(ctx, r.creds)
	if err != nil {
		logger.Warn("Launch failed", zap.Error(err))
		return actiontypes.Failure(err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Browser close failed", zap.Error(err))
		}
	}()

	page := sess.Page()
	login, err := r.establisher.Establish(ctx, page, r.creds)
	if err != nil {
		out = actiontypes.Failure(err)
	} else {
		out, _ = r.executor.Execute(ctx, page, login, req)
	}

	// Persist whatever the context holds now, authenticated or not, even if
	// the caller has gone away.
	if err := sess.SaveState(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Session state not saved", zap.Error(err))
	}
	return out
}
