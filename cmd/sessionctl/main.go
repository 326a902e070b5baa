// Command sessionctl drives the client side of the session flow against a running API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sessionguard/internal/config"
	"sessionguard/internal/session"
	"sessionguard/internal/tokenstore"
	"sessionguard/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	cfg     config.ClientConfig
	verbose bool
	out     io.Writer
}

func rootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	defaults, err := config.LoadClient()
	if err != nil {
		// Fall back to built-in defaults; the flags below still apply.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		defaults = config.ClientConfig{}
	}

	cmd := &cobra.Command{
		Use:   "sessionctl",
		Short: "Log in, refresh and inspect sessions against a sessionguard API",
		Long: `sessionctl keeps a token pair in a local file and refreshes it the same way
a browser client would: once per 401, with a deadline, and never twice in parallel.

Examples:
  sessionctl login --email admin@example.com
  sessionctl whoami
  sessionctl refresh
  sessionctl smoke --store cookie
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.cfg.Validate()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfg.BaseURL, "url", defaults.BaseURL, "API base URL (SESSIONGUARD_URL)")
	cmd.PersistentFlags().StringVar(&opts.cfg.TokenFile, "token-file", defaults.TokenFile, "Token file (SESSIONGUARD_TOKEN_FILE)")
	cmd.PersistentFlags().DurationVar(&opts.cfg.RefreshTimeout, "timeout", defaults.RefreshTimeout, "Refresh call deadline (REFRESH_TIMEOUT)")
	cmd.PersistentFlags().DurationVar(&opts.cfg.RefreshMargin, "margin", defaults.RefreshMargin, "Proactive refresh margin (REFRESH_MARGIN)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log refresh activity to stderr")

	cmd.AddCommand(
		loginCmd(opts),
		statusCmd(opts),
		whoamiCmd(opts),
		refreshCmd(opts),
		logoutCmd(opts),
		smokeCmd(opts),
	)
	return cmd
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return logger.Discard()
	}
	return logger.NewWithWriter("dev", os.Stderr)
}

// session builds a Session over store, defaulting to the token file.
func (o *options) session(store tokenstore.Store) (*session.Session, error) {
	if store == nil {
		store = tokenstore.NewFileStore(o.cfg.TokenFile)
	}
	return session.New(session.Config{
		BaseURL:        o.cfg.BaseURL,
		Store:          store,
		RefreshTimeout: o.cfg.RefreshTimeout,
		RefreshMargin:  o.cfg.RefreshMargin,
		Logger:         o.logger(),
	})
}
