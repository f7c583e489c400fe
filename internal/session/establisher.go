// Package session guarantees an authenticated page before an action runs.
//
// The login flow is a finite-state machine. The front end may interpose a
// secondary identifier prompt and does not always show a clear outcome, so
// every state has its own bounded wait and the ambiguous ending is a state of
// its own rather than a guess.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/browser"
	"github.com/copyleftdev/xsession/internal/config"
	"github.com/copyleftdev/xsession/internal/dom"
	"github.com/copyleftdev/xsession/internal/humanize"
	"go.uber.org/zap"
)

type State int

const (
	StateUnknown State = iota
	StateCheckAuthenticated
	StateBeginLogin
	StateEnterIdentifier
	StateSecondaryChallenge
	StateEnterPassword
	StateResolveOutcome
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateUnknown:            "unknown",
	StateCheckAuthenticated: "check_authenticated",
	StateBeginLogin:         "begin_login",
	StateEnterIdentifier:    "enter_identifier",
	StateSecondaryChallenge: "secondary_challenge",
	StateEnterPassword:      "enter_password",
	StateResolveOutcome:     "resolve_outcome",
	StateDone:               "done",
	StateFailed:             "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// maxSteps bounds the machine. The transition graph is acyclic, so reaching
// it means a transition function is broken.
const maxSteps = 16

// Result describes an established session.
type Result struct {
	Source   actiontypes.Source
	URL      string // only for SourceLoginAttempted
	Username string
	Trace    []State
}

// Outcome is what the login action reports.
func (r *Result) Outcome() actiontypes.Outcome {
	out := actiontypes.Outcome{Success: true, Source: r.Source, Username: r.Username}
	if r.Source == actiontypes.SourceLoginAttempted {
		out.URL = r.URL
	}
	return out
}

// Establisher runs the login state machine against a page.
type Establisher struct {
	target    config.TargetConfig
	selectors config.SelectorConfig
	timing    config.TimingConfig
	typist    *humanize.Typist
	logger    *zap.Logger

	transitions map[State]stateFn
}

type stateFn func(ctx context.Context, r *run) (State, error)

// run is the mutable state of one Establish call.
type run struct {
	page   browser.Page
	creds  actiontypes.Credentials
	result *Result
}

func NewEstablisher(cfg *config.Config, typist *humanize.Typist, logger *zap.Logger) *Establisher {
	e := &Establisher{
		target:    cfg.Target,
		selectors: cfg.Selectors,
		timing:    cfg.Timing,
		typist:    typist,
		logger:    logger.Named("session"),
	}
	e.transitions = map[State]stateFn{
		StateUnknown:            e.openHome,
		StateCheckAuthenticated: e.checkAuthenticated,
		StateBeginLogin:         e.beginLogin,
		StateEnterIdentifier:    e.enterIdentifier,
		StateSecondaryChallenge: e.secondaryChallenge,
		StateEnterPassword:      e.enterPassword,
		StateResolveOutcome:     e.resolveOutcome,
	}
	return e
}

// Establish drives page until it is authenticated or the flow fails. The
// returned Result always carries the trace; on failure err is an
// *actiontypes.Error of kind login_flow.
func (e *Establisher) Establish(ctx context.Context, page browser.Page, creds actiontypes.Credentials) (res *Result, err error) {
	r := &run{page: page, creds: creds, result: &Result{Username: creds.Username}}
	res = r.result

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Login flow panicked", zap.Any("panic", p), zap.Stringers("trace", res.Trace))
			res.Trace = append(res.Trace, StateFailed)
			err = actiontypes.Newf(actiontypes.KindLoginFlow, fmt.Errorf("panic: %v", p), "Login failed: panic: %v", p)
		}
	}()

	state := StateUnknown
	var failure error
	for steps := 0; ; steps++ {
		res.Trace = append(res.Trace, state)
		if state.Terminal() {
			break
		}
		if steps >= maxSteps {
			failure = fmt.Errorf("login flow exceeded %d steps", maxSteps)
			state = StateFailed
			continue
		}

		fn, ok := e.transitions[state]
		if !ok {
			failure = fmt.Errorf("no transition from state %s", state)
			state = StateFailed
			continue
		}
		next, stepErr := fn(ctx, r)
		if stepErr != nil {
			e.logger.Debug("Login step failed", zap.Stringer("state", state), zap.Error(stepErr))
			failure = stepErr
			next = StateFailed
		}
		e.logger.Debug("Login transition", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	if state == StateFailed {
		e.snapshot(ctx, page)
		err = loginError(failure)
		e.logger.Warn("Login flow failed", zap.Error(err), zap.Stringers("trace", res.Trace))
		return res, err
	}

	e.logger.Info("Session established",
		zap.String("source", string(res.Source)),
		zap.Stringers("trace", res.Trace),
	)
	return res, nil
}

// loginError keeps messages already phrased for the caller and wraps the rest.
func loginError(err error) error {
	if err == nil {
		err = errors.New("login flow ended without a cause")
	}
	var ae *actiontypes.Error
	if errors.As(err, &ae) {
		return ae
	}
	return actiontypes.Newf(actiontypes.KindLoginFlow, err, "Login failed: %v", err)
}

// openHome loads the home surface and lets the client render.
func (e *Establisher) openHome(ctx context.Context, r *run) (State, error) {
	if err := r.page.Navigate(ctx, e.target.HomeURL()); err != nil {
		return StateFailed, err
	}
	if err := r.page.Pause(ctx, e.timing.PageSettle); err != nil {
		return StateFailed, err
	}
	return StateCheckAuthenticated, nil
}

// checkAuthenticated needs the signature element as well as the home URL.
func (e *Establisher) checkAuthenticated(ctx context.Context, r *run) (State, error) {
	url, err := r.page.URL(ctx)
	if err != nil {
		return StateFailed, err
	}
	if !e.isHome(url) || strings.Contains(url, e.target.LoginMarker) {
		e.logger.Debug("Not on the home surface", zap.String("url", url))
		return StateBeginLogin, nil
	}
	if _, err := r.page.WaitFor(ctx, e.selectors.HomeSignature, e.timing.AuthCheckTimeout); err != nil {
		if ctx.Err() != nil {
			return StateFailed, ctx.Err()
		}
		e.logger.Debug("Home signature missing, session not authenticated", zap.Error(err))
		return StateBeginLogin, nil
	}
	r.result.Source = actiontypes.SourceCookies
	return StateDone, nil
}

// beginLogin opens the login flow.
func (e *Establisher) beginLogin(ctx context.Context, r *run) (State, error) {
	if err := r.page.Navigate(ctx, e.target.LoginURL()); err != nil {
		return StateFailed, err
	}
	if err := r.page.Pause(ctx, e.timing.PageSettle); err != nil {
		return StateFailed, err
	}
	return StateEnterIdentifier, nil
}

// enterIdentifier types the username and advances past the first step.
func (e *Establisher) enterIdentifier(ctx context.Context, r *run) (State, error) {
	input, err := r.page.WaitFor(ctx, e.selectors.IdentifierInput, e.timing.IdentifierTimeout)
	if err != nil {
		return StateFailed, fmt.Errorf("identifier input: %w", err)
	}
	if err := e.typeField(ctx, r.page, input, r.creds.Username); err != nil {
		return StateFailed, fmt.Errorf("identifier input: %w", err)
	}

	next := browser.NewLocator(browser.ByLabel{Selector: e.selectors.Button, Label: e.selectors.NextLabel})
	if err := e.clickIfFound(ctx, r.page, next, "identifier next"); err != nil {
		return StateFailed, err
	}
	if err := r.page.Pause(ctx, e.timing.StepSettle); err != nil {
		return StateFailed, err
	}
	return StateSecondaryChallenge, nil
}

// secondaryChallenge answers the email prompt some attempts get.
func (e *Establisher) secondaryChallenge(ctx context.Context, r *run) (State, error) {
	input, err := r.page.Query(ctx, e.selectors.SecondaryInput)
	if err != nil {
		return StateFailed, err
	}
	if input == nil {
		return StateEnterPassword, nil
	}
	if r.creds.Email == "" {
		return StateFailed, errors.New("secondary identifier requested but TWITTER_EMAIL is not set")
	}

	e.logger.Info("Secondary identifier challenge")
	if err := e.typist.Hesitate(ctx, r.page, humanize.Range(e.timing.PreTypeDelay)); err != nil {
		return StateFailed, err
	}
	if err := e.typist.Type(ctx, r.page, input, r.creds.Email, humanize.Range(e.timing.LoginKeyDelay)); err != nil {
		return StateFailed, fmt.Errorf("secondary input: %w", err)
	}
	if err := r.page.Pause(ctx, e.timing.FocusSettle); err != nil {
		return StateFailed, err
	}

	next := browser.NewLocator(
		browser.BySelector{Selector: e.selectors.SecondaryNext},
		browser.ByLabel{Selector: e.selectors.Button, Label: e.selectors.NextLabel},
	)
	if err := e.clickIfFound(ctx, r.page, next, "secondary next"); err != nil {
		return StateFailed, err
	}
	if err := r.page.Pause(ctx, e.timing.StepSettle); err != nil {
		return StateFailed, err
	}
	return StateEnterPassword, nil
}

// enterPassword types the password and submits the form.
func (e *Establisher) enterPassword(ctx context.Context, r *run) (State, error) {
	input, err := r.page.WaitFor(ctx, e.selectors.PasswordInput, e.timing.PasswordTimeout)
	if err != nil {
		return StateFailed, fmt.Errorf("password input: %w", err)
	}
	if err := e.typist.Hesitate(ctx, r.page, humanize.Range(e.timing.PostTypeDelay)); err != nil {
		return StateFailed, err
	}
	if err := e.typist.Type(ctx, r.page, input, r.creds.Password, humanize.Range(e.timing.LoginKeyDelay)); err != nil {
		return StateFailed, fmt.Errorf("password input: %w", err)
	}
	if err := e.typist.Hesitate(ctx, r.page, humanize.Range(e.timing.PostTypeDelay)); err != nil {
		return StateFailed, err
	}

	submit := browser.NewLocator(browser.BySelector{Selector: e.selectors.LoginSubmit})
	if err := e.clickIfFound(ctx, r.page, submit, "login submit"); err != nil {
		return StateFailed, err
	}
	return StateResolveOutcome, nil
}

// resolveOutcome: home means success, an error banner means failure, anything else is
// reported as an attempt. A slow success and a silent failure look the same
// from here.
func (e *Establisher) resolveOutcome(ctx context.Context, r *run) (State, error) {
	if err := r.page.Pause(ctx, e.timing.LoginSettle); err != nil {
		return StateFailed, err
	}
	url, err := r.page.URL(ctx)
	if err != nil {
		return StateFailed, err
	}
	if e.isHome(url) {
		r.result.Source = actiontypes.SourceFreshLogin
		return StateDone, nil
	}

	banner, err := r.page.Query(ctx, e.selectors.LoginError)
	if err != nil {
		return StateFailed, err
	}
	if banner != nil {
		text, err := banner.Text(ctx)
		if err != nil {
			return StateFailed, fmt.Errorf("read login error: %w", err)
		}
		return StateFailed, actiontypes.Newf(actiontypes.KindLoginFlow, nil, "Login error: %s", strings.TrimSpace(text))
	}

	e.logger.Warn("Login outcome not conclusive", zap.String("url", url))
	r.result.Source = actiontypes.SourceLoginAttempted
	r.result.URL = url
	return StateDone, nil
}

func (e *Establisher) isHome(url string) bool {
	return strings.Contains(url, e.target.HomePath)
}

// typeField enters text with a pause on either side.
func (e *Establisher) typeField(ctx context.Context, page browser.Page, input browser.Element, text string) error {
	if err := e.typist.Hesitate(ctx, page, humanize.Range(e.timing.PreTypeDelay)); err != nil {
		return err
	}
	if err := e.typist.Type(ctx, page, input, text, humanize.Range(e.timing.LoginKeyDelay)); err != nil {
		return err
	}
	return e.typist.Hesitate(ctx, page, humanize.Range(e.timing.PostTypeDelay))
}

// clickIfFound clicks the located control. A missing control is not an
// error: the following state's wait decides whether the flow advanced.
func (e *Establisher) clickIfFound(ctx context.Context, page browser.Page, loc browser.Locator, what string) error {
	el, strategy, err := loc.Find(ctx, page)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if el == nil {
		e.logger.Warn("Control not found", zap.String("control", what))
		return nil
	}
	e.logger.Debug("Clicking control", zap.String("control", what), zap.String("strategy", strategy.Describe()))
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", what, err)
	}
	return nil
}

// snapshot logs a simplified copy of the page at debug level, which is
// usually enough to see which selector drifted.
func (e *Establisher) snapshot(ctx context.Context, page browser.Page) {
	if !e.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	snapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	html, err := page.HTML(snapCtx)
	if err != nil {
		e.logger.Debug("Page snapshot unavailable", zap.Error(err))
		return
	}
	simplified, err := dom.GetSimplifiedDOM(html)
	if err != nil {
		e.logger.Debug("Page snapshot unavailable", zap.Error(err))
		return
	}
	e.logger.Debug("Page at login failure", zap.String("dom", simplified))
}
