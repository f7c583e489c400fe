package browser

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/xsession/internal/config"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Persona is the browser identity presented to the site.
type Persona struct {
	UserAgent string
	Locale    string
	Timezone  string
	Width     int64
	Height    int64
}

// PersonaFromConfig builds the persona described by cfg.
func PersonaFromConfig(cfg config.BrowserConfig) Persona {
	return Persona{
		UserAgent: cfg.UserAgent,
		Locale:    cfg.Locale,
		Timezone:  cfg.Timezone,
		Width:     cfg.ViewportWidth,
		Height:    cfg.ViewportHeight,
	}
}

// AcceptLanguage derives an Accept-Language header from the locale,
// e.g. "en-US" becomes "en-US,en;q=0.9".
func (p Persona) AcceptLanguage() string {
	if p.Locale == "" {
		return ""
	}
	base, _, found := strings.Cut(p.Locale, "-")
	if !found || base == "" {
		return p.Locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", p.Locale, base)
}

// AllocatorOptions returns the exec allocator flags for the persona. The
// automation switches Chrome exposes by default are turned off.
func (p Persona) AllocatorOptions(execPath string, headless, noSandbox bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if p.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.UserAgent))
	}
	if p.Width > 0 && p.Height > 0 {
		opts = append(opts, chromedp.WindowSize(int(p.Width), int(p.Height)))
	}
	if p.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", p.Locale))
	}
	return opts
}

// Tasks applies the persona to the current tab. It must run before the
// first navigation so the evasions script is installed for every document.
func (p Persona) Tasks(logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("locale", p.Locale),
		zap.String("timezone", p.Timezone),
	)

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}
	if p.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(p.UserAgent).WithAcceptLanguage(p.AcceptLanguage()))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(p.Locale))
	}
	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Width > 0 && p.Height > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(p.Width, p.Height, 1, false))
	}
	return tasks
}
