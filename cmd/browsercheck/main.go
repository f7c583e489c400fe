// Command browsercheck launches the configured browser with the same persona
// the session engine uses, loads one page and prints what automation
// detectors would see. Use it to confirm a host can run xsession at all.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/copyleftdev/xsession/internal/browser"
	"github.com/copyleftdev/xsession/internal/config"
	"github.com/copyleftdev/xsession/internal/dom"
	"github.com/copyleftdev/xsession/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type report struct {
	ExecutablePath string          `json:"executablePath"`
	URL            string          `json:"url"`
	Fingerprint    dom.Fingerprint `json:"fingerprint"`
	Elapsed        string          `json:"elapsed"`
}

func main() {
	var (
		cfgFile string
		target  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:           "browsercheck",
		Short:         "Verify that a browser can be launched and report its fingerprint.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := observability.NewStderrLogger(cfg.Log)
			defer observability.Sync(logger)

			execPath, err := browser.ResolveExecPath(cfg.Browser.ExecutablePath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return check(ctx, cfg, execPath, target, logger)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.Flags().StringVar(&target, "url", "data:text/html,<title>browsercheck</title>", "page to load before reading the fingerprint")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "browsercheck:", err)
		os.Exit(1)
	}
}

func check(ctx context.Context, cfg *config.Config, execPath, target string, logger *zap.Logger) error {
	start := time.Now()
	sess, err := browser.NewProvider(cfg, logger).Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Browser close", zap.Error(err))
		}
	}()

	if err := sess.Page().Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	fp, err := sess.Fingerprint(ctx)
	if err != nil {
		return err
	}
	if fp.Webdriver {
		logger.Warn("navigator.webdriver is exposed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report{
		ExecutablePath: execPath,
		URL:            target,
		Fingerprint:    fp,
		Elapsed:        time.Since(start).Round(time.Millisecond).String(),
	})
}
