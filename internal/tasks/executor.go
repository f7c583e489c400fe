package tasks

import (
	"context"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/browser"
)

// Session is the browser a run owns: one page, its persisted state, and the
// process behind it.
type Session interface {
	Page() browser.Page
	// SaveState replaces the persisted session state with the browser's.
	SaveState(ctx context.Context) error
	// Close releases the browser. Calling it again is a no-op.
	Close() error
}

// Launcher produces a Session. Pre-flight failures (no browser, missing
// credentials) must be reported before any process is started.
type Launcher interface {
	Launch(ctx context.Context, creds actiontypes.Credentials) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, creds actiontypes.Credentials) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context, creds actiontypes.Credentials) (Session, error) {
	return f(ctx, creds)
}

// ProviderLauncher launches real browsers through p.
func ProviderLauncher(p *browser.Provider) Launcher {
	return LauncherFunc(func(ctx context.Context, creds actiontypes.Credentials) (Session, error) {
		s, err := p.Launch(ctx, creds)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Compile-time check
var _ Session = (*browser.Session)(nil)
