// Package cli defines the amdgputop command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skobkin/amdgputop/internal/app"
	"github.com/skobkin/amdgputop/internal/config"
	"github.com/skobkin/amdgputop/internal/metrics"
	"github.com/skobkin/amdgputop/internal/version"
)

const allDisabledMessage = "All rows disabled. Exiting."

const flagConfig = "config"

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, out *os.File, errOut io.Writer) int {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "amdgputop: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the amdgputop command tree. The dashboard and any
// command output go to out; errors and pre-terminal logs go to errOut.
func NewRootCommand(out *os.File, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "amdgputop",
		Short: "Live AMD GPU telemetry in the terminal",
		Long: `amdgputop shows live telemetry of one amdgpu card as a full-screen
table of colored bars and values, read from sysfs every update interval.

Press q, Esc, Ctrl-D or Ctrl-C to quit.

Rows (for --disable): ` + strings.Join(metrics.Keys(), ", ") + `

Every flag can also be set with an AMDGPUTOP_ environment variable
(e.g. AMDGPUTOP_UPDATE=1) or in $XDG_CONFIG_HOME/amdgputop/config.yaml.`,
		Version:       version.Current().String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd, out, errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	addDashboardFlags(root.Flags())
	addSharedFlags(root.PersistentFlags())

	root.AddCommand(newListCommand(out, errOut))
	return root
}

func addDashboardFlags(flags *pflag.FlagSet) {
	flags.StringP(config.KeyUpdate, "u", "2", "update interval in seconds (or a duration like 500ms)")
	flags.BoolP(config.KeyNoColor, "n", false, "disable colors")
	flags.StringArrayP(config.KeyDisable, "d", nil, "comma separated rows to hide, repeatable")
	flags.String(config.KeyTextfile, "", "also write each reading to this node_exporter textfile")
	flags.String(config.KeyLogFile, "", "write logs to this file while the dashboard runs")
	flags.Bool(config.KeyOnce, false, "print one plain snapshot and exit")
}

// addSharedFlags registers the flags subcommands inherit.
func addSharedFlags(flags *pflag.FlagSet) {
	flags.String(config.KeyCard, "auto", "card to monitor, e.g. card1")
	flags.String(config.KeySysfsRoot, "/sys", "sysfs mount point")
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn or error")
	flags.String(flagConfig, "", "config file (default $XDG_CONFIG_HOME/amdgputop/config.yaml)")
}

// loadConfig layers flags over environment, config file and defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := config.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := config.ReadFile(v, path); err != nil {
		return nil, err
	}
	return v, nil
}

func runDashboard(cmd *cobra.Command, out *os.File, errOut io.Writer) error {
	cfg, err := loadConfig(cmd)
	if errors.Is(err, config.ErrAllRowsDisabled) {
		fmt.Fprintln(out, allDisabledMessage)
		return nil
	}
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, errOut)
	if err != nil {
		return err
	}
	defer closeLog()

	return app.Run(cmd.Context(), logger, cfg, out)
}

// newLogger picks where logs go. The dashboard owns the terminal, so without
// a log file interactive runs discard logs instead of corrupting the screen.
func newLogger(cfg config.Config, errOut io.Writer) (*slog.Logger, func(), error) {
	w := errOut
	closeLog := func() {}

	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeLog = func() { _ = f.Close() }
	case !cfg.Once:
		w = io.Discard
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})
	return slog.New(handler), closeLog, nil
}

