package mocks

import (
	"context"
	"sync"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/browser"
	"github.com/copyleftdev/xsession/internal/browser/mocks"
)

// MockSession is a tasks.Session around a scripted page.
type MockSession struct {
	mu         sync.Mutex
	page       *mocks.FakePage
	saveErr    error
	closeErr   error
	saveCalls  int
	closeCalls int
	// events records SaveState and Close in call order.
	events []string
}

func NewMockSession(page *mocks.FakePage) *MockSession {
	return &MockSession{page: page}
}

func (s *MockSession) WithSaveError(err error) *MockSession {
	s.saveErr = err
	return s
}

func (s *MockSession) WithCloseError(err error) *MockSession {
	s.closeErr = err
	return s
}

func (s *MockSession) Page() browser.Page { return s.page }

func (s *MockSession) SaveState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.events = append(s.events, "save")
	return s.saveErr
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	s.events = append(s.events, "close")
	return s.closeErr
}

func (s *MockSession) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}

func (s *MockSession) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

func (s *MockSession) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// MockLauncher hands out a prepared session, or fails with a prepared error.
type MockLauncher struct {
	mu       sync.Mutex
	session  *MockSession
	err      error
	launches []actiontypes.Credentials
}

func NewMockLauncher(session *MockSession) *MockLauncher {
	return &MockLauncher{session: session}
}

// NewFailingLauncher returns a launcher whose every launch fails with err.
func NewFailingLauncher(err error) *MockLauncher {
	return &MockLauncher{err: err}
}

// Launch validates credentials the way the real provider does, then returns
// the prepared session.
func (l *MockLauncher) Launch(ctx context.Context, creds actiontypes.Credentials) (*MockSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	l.launches = append(l.launches, creds)
	return l.session, nil
}

// Launches counts successful launches.
func (l *MockLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

// Credentials returns the credentials of every successful launch, in order.
func (l *MockLauncher) Credentials() []actiontypes.Credentials {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]actiontypes.Credentials(nil), l.launches...)
}
