package browser

import (
	"context"
	"fmt"
	"strings"
)

// Strategy is one way of finding an element. Locate returns (nil, nil) when
// the strategy finds nothing; errors are reserved for browser failures.
type Strategy interface {
	Describe() string
	Locate(ctx context.Context, page Page) (Element, error)
}

// BySelector matches the first element for a CSS selector.
type BySelector struct {
	Selector string
}

func (s BySelector) Describe() string { return "selector " + s.Selector }

func (s BySelector) Locate(ctx context.Context, page Page) (Element, error) {
	return page.Query(ctx, s.Selector)
}

// ByLabel scans every element matching Selector and returns the first whose
// visible text contains Label, ignoring case. Elements whose text cannot be
// read are skipped.
type ByLabel struct {
	Selector string
	Label    string
}

func (s ByLabel) Describe() string {
	return fmt.Sprintf("%s labelled %q", s.Selector, s.Label)
}

func (s ByLabel) Locate(ctx context.Context, page Page) (Element, error) {
	candidates, err := page.QueryAll(ctx, s.Selector)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(s.Label)
	for _, el := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), want) {
			return el, nil
		}
	}
	return nil, nil
}

// Locator tries its strategies in order and stops at the first hit.
type Locator struct {
	Strategies []Strategy
}

func NewLocator(strategies ...Strategy) Locator {
	return Locator{Strategies: strategies}
}

// Find returns the element and the strategy that found it. Both are nil when
// no strategy matched.
func (l Locator) Find(ctx context.Context, page Page) (Element, Strategy, error) {
	for _, s := range l.Strategies {
		el, err := s.Locate(ctx, page)
		if err != nil {
			return nil, nil, fmt.Errorf("locate by %s: %w", s.Describe(), err)
		}
		if el != nil {
			return el, s, nil
		}
	}
	return nil, nil, nil
}
