package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/copyleftdev/xsession/internal/browser"
)

// Compile-time checks
var (
	_ browser.Page    = (*FakePage)(nil)
	_ browser.Element = (*FakeElement)(nil)
)

// Wait records one WaitFor call.
type Wait struct {
	Selector string
	Timeout  time.Duration
}

// FakePage is a scripted browser.Page. Elements are registered per selector;
// routes map a navigation target onto the URL the page ends up showing,
// which is how redirects are simulated.
type FakePage struct {
	mu          sync.Mutex
	url         string
	routes      map[string]string
	navErrs     map[string]error
	elements    map[string][]*FakeElement
	html        string
	urlErr      error
	onNavigate  func(url string)
	navigations []string
	pauses      []time.Duration
	waits       []Wait
	keyboard    []string
}

func NewFakePage() *FakePage {
	return &FakePage{
		url:      "about:blank",
		routes:   make(map[string]string),
		navErrs:  make(map[string]error),
		elements: make(map[string][]*FakeElement),
	}
}

// Route makes a navigation to from land on to.
func (p *FakePage) Route(from, to string) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[from] = to
	return p
}

// FailNavigate makes a navigation to url fail with err.
func (p *FakePage) FailNavigate(url string, err error) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErrs[url] = err
	return p
}

// Add registers elements under selector, appending to any already there.
func (p *FakePage) Add(selector string, els ...*FakeElement) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
	return p
}

// Remove drops every element registered under selector.
func (p *FakePage) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *FakePage) SetURLError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urlErr = err
}

func (p *FakePage) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// OnNavigate installs a hook called, outside the lock, after every
// successful navigation.
func (p *FakePage) OnNavigate(fn func(url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	if err, ok := p.navErrs[url]; ok {
		p.mu.Unlock()
		return err
	}
	if to, ok := p.routes[url]; ok {
		p.url = to
	} else {
		p.url = url
	}
	hook := p.onNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.urlErr != nil {
		return "", p.urlErr
	}
	return p.url, nil
}

// WaitFor returns immediately: the element is either registered or the wait
// fails as if its timeout had elapsed.
func (p *FakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, Wait{Selector: selector, Timeout: timeout})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if els := p.elements[selector]; len(els) > 0 {
		return els[0], nil
	}
	return nil, fmt.Errorf("waiting for %s (timeout %s): %w", selector, timeout, context.DeadlineExceeded)
}

func (p *FakePage) Query(ctx context.Context, selector string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if els := p.elements[selector]; len(els) > 0 {
		return els[0], nil
	}
	return nil, nil
}

func (p *FakePage) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(p.elements[selector]))
	for _, el := range p.elements[selector] {
		out = append(out, el)
	}
	return out, nil
}

func (p *FakePage) SendKeys(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keyboard = append(p.keyboard, keys)
	return nil
}

// Pause records d and returns at once.
func (p *FakePage) Pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.pauses = append(p.pauses, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

// Navigations returns every navigation target in call order.
func (p *FakePage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

func (p *FakePage) Pauses() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.pauses...)
}

func (p *FakePage) Waits() []Wait {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Wait(nil), p.waits...)
}

// Typed returns what was sent to the focused element via the page keyboard.
func (p *FakePage) Typed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.keyboard, "")
}

// FakeElement is a scripted browser.Element.
type FakeElement struct {
	mu       sync.Mutex
	label    string
	textErr  error
	clickErr error
	keysErr  error
	onClick  func()
	clicks   int
	typed    []string
}

func NewFakeElement(label string) *FakeElement {
	return &FakeElement{label: label}
}

func (e *FakeElement) WithTextError(err error) *FakeElement {
	e.textErr = err
	return e
}

func (e *FakeElement) WithClickError(err error) *FakeElement {
	e.clickErr = err
	return e
}

func (e *FakeElement) WithSendKeysError(err error) *FakeElement {
	e.keysErr = err
	return e
}

// OnClick installs a hook run after each successful click, typically to
// change the page's URL or elements.
func (e *FakeElement) OnClick(fn func()) *FakeElement {
	e.onClick = fn
	return e
}

func (e *FakeElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.clickErr != nil {
		e.mu.Unlock()
		return e.clickErr
	}
	e.clicks++
	hook := e.onClick
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (e *FakeElement) SendKeys(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keysErr != nil {
		return e.keysErr
	}
	e.typed = append(e.typed, keys)
	return nil
}

func (e *FakeElement) Text(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.textErr != nil {
		return "", e.textErr
	}
	return e.label, nil
}

func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Typed returns everything sent to this element.
func (e *FakeElement) Typed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.typed, "")
}
