package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/config"
	"github.com/copyleftdev/xsession/internal/dom"
	"go.uber.org/zap"
)

// Provider launches one browser with one tab per run.
type Provider struct {
	cfg    *config.Config
	logger *zap.Logger
	finder execFinder
	now    func() time.Time
}

func NewProvider(cfg *config.Config, logger *zap.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		logger: logger.Named("browser"),
		finder: defaultExecFinder(),
		now:    time.Now,
	}
}

// Launch checks the pre-flight conditions and only then spawns the browser:
// a run that is bound to fail never leaves a browser process behind.
func (p *Provider) Launch(ctx context.Context, creds actiontypes.Credentials) (*Session, error) {
	execPath, err := p.finder.resolve(p.cfg.Browser.ExecutablePath)
	if err != nil {
		return nil, actiontypes.Newf(actiontypes.KindLaunch, err, "Chromium not found")
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return p.open(ctx, execPath)
}

// Open launches the browser without requiring credentials.
func (p *Provider) Open(ctx context.Context) (*Session, error) {
	execPath, err := p.finder.resolve(p.cfg.Browser.ExecutablePath)
	if err != nil {
		return nil, actiontypes.Newf(actiontypes.KindLaunch, err, "Chromium not found")
	}
	return p.open(ctx, execPath)
}

func (p *Provider) open(ctx context.Context, execPath string) (*Session, error) {
	statePath := p.cfg.Session.StatePath
	state, err := ReadState(statePath)
	if err != nil {
		p.logger.Warn("Ignoring unreadable session state", zap.String("path", statePath), zap.Error(err))
		state = nil
	}

	persona := PersonaFromConfig(p.cfg.Browser)
	opts := persona.AllocatorOptions(execPath, p.cfg.Browser.Headless, p.cfg.Browser.NoSandbox)

	// The browser outlives any single call, so neither context derives from ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	sugar := p.logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	tasks := chromedp.Tasks{network.Enable(), persona.Tasks(p.logger)}
	if cookies := state.CookieParams(p.now()); len(cookies) > 0 {
		tasks = append(tasks, network.SetCookies(cookies))
	}
	script, err := localStorageSeedScript(state.LocalStorageByOrigin())
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, actiontypes.Newf(actiontypes.KindLaunch, err, "Browser launch failed: %v", err)
	}
	if script != "" {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}

	// The first Run allocates the browser. It must run on tabCtx itself, so
	// the caller's cancellation and the launch deadline are linked in by hand.
	err = launchWithin(ctx, p.cfg.Timing.NavigationTimeout, tabCancel, func() error {
		return chromedp.Run(tabCtx, tasks)
	})
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, actiontypes.Newf(actiontypes.KindLaunch, err, "Browser launch failed: %v", err)
	}

	p.logger.Info("Browser launched",
		zap.String("exec", execPath),
		zap.Bool("headless", p.cfg.Browser.Headless),
		zap.Bool("seeded", state != nil),
	)

	return &Session{
		page:            &chromedpPage{tabCtx: tabCtx, stepTimeout: p.cfg.Timing.NavigationTimeout},
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		allocCancel:     allocCancel,
		statePath:       statePath,
		shutdownTimeout: p.cfg.Browser.ShutdownTimeout,
		logger:          p.logger,
	}, nil
}

// launchWithin runs launch, cancelling the tab when ctx ends or timeout
// passes first. A cancellation that fires after launch returned still fails
// the launch, since the tab is already gone.
func launchWithin(ctx context.Context, timeout time.Duration, cancelTab context.CancelFunc, launch func() error) error {
	stop := context.AfterFunc(ctx, cancelTab)
	var deadline *time.Timer
	if timeout > 0 {
		deadline = time.AfterFunc(timeout, cancelTab)
	}
	err := launch()
	if deadline != nil && !deadline.Stop() && err == nil {
		err = fmt.Errorf("browser did not start within %s", timeout)
	}
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}

// Session owns the browser process and its single tab for one run.
type Session struct {
	page            *chromedpPage
	tabCtx          context.Context
	tabCancel       context.CancelFunc
	allocCancel     context.CancelFunc
	statePath       string
	shutdownTimeout time.Duration
	logger          *zap.Logger

	closeOnce sync.Once
}

func (s *Session) Page() Page { return s.page }

// SaveState snapshots the tab's cookies and the current origin's
// localStorage and replaces the state file with them.
func (s *Session) SaveState(ctx context.Context) error {
	var cookies []*network.Cookie
	err := s.page.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("collect cookies: %w", err)
	}

	var origin, entries string
	local := map[string]string{}
	if err := s.page.run(ctx, 0, dom.LocalStorageAction(&origin, &entries)); err != nil {
		// about:blank and error pages have no storage.
		s.logger.Debug("localStorage not captured", zap.Error(err))
	} else if entries != "" {
		if err := json.Unmarshal([]byte(entries), &local); err != nil {
			s.logger.Debug("localStorage not captured", zap.Error(err))
			local = map[string]string{}
		}
	}

	st := StateFromBrowser(cookies, origin, local)
	if err := WriteState(s.statePath, st); err != nil {
		return err
	}
	s.logger.Info("Session state saved",
		zap.String("path", s.statePath),
		zap.Int("cookies", len(st.Cookies)),
		zap.Int("origins", len(st.Origins)),
	)
	return nil
}

// Fingerprint reports what the current document exposes to automation
// detectors.
func (s *Session) Fingerprint(ctx context.Context) (dom.Fingerprint, error) {
	var fp dom.Fingerprint
	if err := s.page.run(ctx, 0, dom.FingerprintAction(&fp)); err != nil {
		return fp, fmt.Errorf("read fingerprint: %w", err)
	}
	return fp, nil
}

// Close shuts the browser down. It is safe to call more than once; only the
// first call has an effect.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.tabCtx) }()

		timer := time.NewTimer(s.shutdownTimeout)
		defer timer.Stop()
		select {
		case err = <-done:
		case <-timer.C:
			err = fmt.Errorf("browser did not close within %s", s.shutdownTimeout)
		}
		s.tabCancel()
		s.allocCancel()
		if err != nil {
			s.logger.Warn("Browser close", zap.Error(err))
		} else {
			s.logger.Debug("Browser closed")
		}
	})
	return err
}
