package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/copyleftdev/xsession/internal/actions"
	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/browser"
	"github.com/copyleftdev/xsession/internal/config"
	"github.com/copyleftdev/xsession/internal/humanize"
	"github.com/copyleftdev/xsession/internal/observability"
	"github.com/copyleftdev/xsession/internal/session"
	"github.com/copyleftdev/xsession/internal/tasks"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const usage = "No action specified. Usage: xsession <login|tweet|reply> [args...]"

type rootOptions struct {
	cfgFile   string
	statePath string
	headless  bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "xsession <login|tweet|reply> [args...]",
		Short: "Run one account action through a headless browser session.",
		Long: `xsession keeps a logged-in browser session on disk and uses it to run
one action per invocation. The result is printed as a single JSON line on
standard output; logs go to standard error.

  xsession login
  xsession tweet "hello world"
  xsession reply 98765 "nice post"`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return err
			}
			logger := observability.NewStderrLogger(cfg.Log)
			defer observability.Sync(logger)

			if len(args) == 0 {
				return printOutcome(stdout, actiontypes.Outcome{Success: false, Error: usage})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := newRunner(cfg, logger)
			out := runner.Run(ctx, actiontypes.NewRequest(args[0], args[1:]...))
			return printOutcome(stdout, out)
		},
	}

	// Message text may start with a dash; everything after the action is an
	// argument.
	cmd.Flags().SetInterspersed(false)
	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.statePath, "state", "", "session state file (overrides session.statePath)")
	cmd.PersistentFlags().BoolVar(&opts.headless, "headless", true, "run the browser headless")

	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

// load reads configuration and applies flags the user set explicitly.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.statePath != "" {
		cfg.Session.StatePath = o.statePath
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = o.headless
	}
	return cfg, nil
}

func newRunner(cfg *config.Config, logger *zap.Logger) *tasks.Runner {
	typist := humanize.New()
	creds := actiontypes.Credentials{
		Username: cfg.Credentials.Username,
		Email:    cfg.Credentials.Email,
		Password: cfg.Credentials.Password,
	}
	return tasks.NewRunner(
		tasks.ProviderLauncher(browser.NewProvider(cfg, logger)),
		session.NewEstablisher(cfg, typist, logger),
		actions.NewExecutor(cfg, typist, logger),
		creds,
		logger,
	)
}

func printOutcome(w io.Writer, out actiontypes.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
