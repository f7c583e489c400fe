package browser

import (
	"context"
	"time"
)

// Element is a handle to one node on the page.
type Element interface {
	Click(ctx context.Context) error
	// SendKeys focuses the element and types keys into it.
	SendKeys(ctx context.Context, keys string) error
	// Text returns the rendered (inner) text of the element.
	Text(ctx context.Context) (string, error)
}

// Page is the browser capability the login flow and the action handlers
// drive. The chromedp implementation lives in page.go; tests use the scripted
// fake in the mocks package.
type Page interface {
	// Navigate loads url and returns once the document has loaded.
	Navigate(ctx context.Context, url string) error
	// URL reports the address currently shown, after any redirects.
	URL(ctx context.Context) (string, error)
	// WaitFor blocks until an element matching selector is visible or
	// timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// Query returns the first match without waiting, or nil when absent.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll returns every current match without waiting.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// SendKeys types into whichever element holds focus.
	SendKeys(ctx context.Context, keys string) error
	// Pause is a settle interval.
	Pause(ctx context.Context, d time.Duration) error
	// HTML returns the serialized document, for diagnostics.
	HTML(ctx context.Context) (string, error)
}
