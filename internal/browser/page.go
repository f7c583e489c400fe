package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/xsession/internal/dom"
)

// Compile-time checks
var (
	_ Page    = (*chromedpPage)(nil)
	_ Element = (*chromedpElement)(nil)
)

// chromedpPage drives the single tab of a Session. Every call runs in a
// context derived from the tab context, so cancelling it aborts the call but
// never closes the tab; the caller's ctx is linked in for cancellation.
// Calls without an explicit timeout are bounded by stepTimeout so that no
// single CDP round trip can hang a run.
type chromedpPage struct {
	tabCtx      context.Context
	stepTimeout time.Duration
}

func (p *chromedpPage) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = p.stepTimeout
	}
	runCtx, cancel := context.WithCancel(p.tabCtx)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		parent := cancel
		cancel = func() { cancelTimeout(); parent() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.scope(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Report the caller's cancellation rather than the derived one.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.stepTimeout, dom.NavigateAction(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, 0, dom.LocationAction(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (p *chromedpPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, timeout, dom.WaitVisibleNodeAction(selector, &nodes)); err != nil {
		return nil, fmt.Errorf("waiting for %s (timeout %s): %w", selector, timeout, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("waiting for %s: no node returned", selector)
	}
	return &chromedpElement{page: p, node: nodes[0]}, nil
}

func (p *chromedpPage) Query(ctx context.Context, selector string) (Element, error) {
	elements, err := p.QueryAll(ctx, selector)
	if err != nil || len(elements) == 0 {
		return nil, err
	}
	return elements[0], nil
}

func (p *chromedpPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, 0, dom.QueryNodesAction(selector, &nodes)); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromedpElement{page: p, node: n})
	}
	return elements, nil
}

func (p *chromedpPage) SendKeys(ctx context.Context, keys string) error {
	return p.run(ctx, 0, dom.KeyboardAction(keys))
}

func (p *chromedpPage) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.tabCtx.Done():
		return p.tabCtx.Err()
	}
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 0, dom.GetFullHTMLAction(&html)); err != nil {
		return "", err
	}
	return html, nil
}

type chromedpElement struct {
	page *chromedpPage
	node *cdp.Node
}

func (e *chromedpElement) Click(ctx context.Context) error {
	return e.page.run(ctx, 0, dom.ClickNodeAction(e.node))
}

func (e *chromedpElement) SendKeys(ctx context.Context, keys string) error {
	return e.page.run(ctx, 0, dom.SendKeysNodeAction(e.node, keys))
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.page.run(ctx, 0, dom.NodeTextAction(e.node, &text)); err != nil {
		return "", err
	}
	return text, nil
}
