package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/browser"
	"github.com/copyleftdev/xsession/internal/config"
	"github.com/copyleftdev/xsession/internal/humanize"
	"github.com/copyleftdev/xsession/internal/session"
	"go.uber.org/zap"
)

// handler runs one action on an authenticated page. Arguments have already
// been validated.
type handler func(ctx context.Context, page browser.Page, login *session.Result, args []string) (actiontypes.Outcome, error)

// Executor dispatches action requests to their handlers.
type Executor struct {
	target    config.TargetConfig
	selectors config.SelectorConfig
	timing    config.TimingConfig
	typist    *humanize.Typist
	logger    *zap.Logger
	now       func() time.Time

	handlers map[actiontypes.ActionName]handler
}

func NewExecutor(cfg *config.Config, typist *humanize.Typist, logger *zap.Logger) *Executor {
	e := &Executor{
		target:    cfg.Target,
		selectors: cfg.Selectors,
		timing:    cfg.Timing,
		typist:    typist,
		logger:    logger.Named("actions"),
		now:       time.Now,
	}
	e.handlers = map[actiontypes.ActionName]handler{
		actiontypes.ActionLogin: e.login,
		actiontypes.ActionTweet: e.tweet,
		actiontypes.ActionReply: e.reply,
	}
	return e
}

// Validate checks a request's arguments without touching the browser.
// Unknown action names are not a validation failure; Execute reports them.
func (e *Executor) Validate(req actiontypes.Request) error {
	switch req.Name {
	case actiontypes.ActionTweet:
		switch {
		case len(req.Args) < 1:
			return actiontypes.Newf(actiontypes.KindValidation, nil, "No tweet text provided")
		case len(req.Args) > 1:
			return actiontypes.Newf(actiontypes.KindValidation, nil, "Tweet takes one argument, got %d; quote the text", len(req.Args))
		}
	case actiontypes.ActionReply:
		switch {
		case len(req.Args) < 2:
			return actiontypes.Newf(actiontypes.KindValidation, nil, "Need tweet_id and text")
		case len(req.Args) > 2:
			return actiontypes.Newf(actiontypes.KindValidation, nil, "Reply takes tweet_id and text, got %d arguments; quote the text", len(req.Args))
		}
	}
	return nil
}

// Known reports whether name has a handler.
func (e *Executor) Known(name actiontypes.ActionName) bool {
	_, ok := e.handlers[name]
	return ok
}

// Execute runs req against an authenticated page. It never panics and
// always returns an outcome; err is the failure behind an unsuccessful one.
func (e *Executor) Execute(ctx context.Context, page browser.Page, login *session.Result, req actiontypes.Request) (out actiontypes.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Action panicked", zap.String("action", string(req.Name)), zap.Any("panic", p))
			err = actiontypes.Newf(actiontypes.KindAction, fmt.Errorf("panic: %v", p), "%s failed: panic: %v", req.Name.Title(), p)
			out = actiontypes.Failure(err)
		}
	}()

	h, ok := e.handlers[req.Name]
	if !ok {
		err = actiontypes.Newf(actiontypes.KindUnknownAction, nil, "Unknown action: %s", req.Name)
		return actiontypes.Failure(err), err
	}
	if err := e.Validate(req); err != nil {
		return actiontypes.Failure(err), err
	}

	out, err = h(ctx, page, login, req.Args)
	if err != nil {
		e.logger.Warn("Action failed", zap.String("action", string(req.Name)), zap.Error(err))
		return actiontypes.Failure(err), err
	}
	e.logger.Info("Action completed", zap.String("action", string(req.Name)))
	return out, nil
}

// login has nothing left to do: establishing the session was the action.
func (e *Executor) login(_ context.Context, _ browser.Page, login *session.Result, _ []string) (actiontypes.Outcome, error) {
	if login == nil {
		return actiontypes.Outcome{}, actiontypes.Newf(actiontypes.KindLoginFlow, nil, "Login failed: no session established")
	}
	return login.Outcome(), nil
}

func (e *Executor) tweet(ctx context.Context, page browser.Page, _ *session.Result, args []string) (actiontypes.Outcome, error) {
	text := args[0]
	if err := e.compose(ctx, page, e.target.HomeURL(), text); err != nil {
		return actiontypes.Outcome{}, actiontypes.Newf(actiontypes.KindAction, err, "Tweet failed: %v", err)
	}
	return actiontypes.Outcome{
		Success:   true,
		Text:      text,
		Timestamp: actiontypes.Timestamp(e.now()),
	}, nil
}

func (e *Executor) reply(ctx context.Context, page browser.Page, _ *session.Result, args []string) (actiontypes.Outcome, error) {
	target, text := e.CanonicalTarget(args[0]), args[1]
	if err := e.compose(ctx, page, target, text); err != nil {
		return actiontypes.Outcome{}, actiontypes.Newf(actiontypes.KindAction, err, "Reply failed: %v", err)
	}
	return actiontypes.Outcome{
		Success:   true,
		ReplyTo:   target,
		Text:      text,
		Timestamp: actiontypes.Timestamp(e.now()),
	}, nil
}

// CanonicalTarget expands a bare message identifier into its address. Full
// addresses pass through unchanged.
func (e *Executor) CanonicalTarget(target string) string {
	if strings.HasPrefix(target, "http") {
		return target
	}
	return e.target.StatusURL(target)
}

// compose opens url, types text into the composer and submits it.
func (e *Executor) compose(ctx context.Context, page browser.Page, url, text string) error {
	if err := page.Navigate(ctx, url); err != nil {
		return err
	}
	if err := page.Pause(ctx, e.timing.PageSettle); err != nil {
		return err
	}

	composer, err := page.WaitFor(ctx, e.selectors.Composer, e.timing.ComposerTimeout)
	if err != nil {
		return err
	}
	if err := composer.Click(ctx); err != nil {
		return fmt.Errorf("focus composer: %w", err)
	}
	if err := page.Pause(ctx, e.timing.FocusSettle); err != nil {
		return err
	}
	if err := e.typist.Type(ctx, page, page, text, humanize.Range(e.timing.ComposeKeyDelay)); err != nil {
		return err
	}
	if err := page.Pause(ctx, e.timing.ComposeSettle); err != nil {
		return err
	}

	submit, err := page.WaitFor(ctx, e.selectors.ComposerSubmit, e.timing.SubmitTimeout)
	if err != nil {
		return err
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return page.Pause(ctx, e.timing.PageSettle)
}
