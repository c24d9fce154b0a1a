package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jlrickert/cli-toolkit/toolkit"
	"github.com/spf13/cobra"

	"github.com/jlrickert/letterpress/pkg/app"
	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/log"
)

// Version may be overridden at build-time with
// -ldflags "-X github.com/jlrickert/letterpress/pkg/cli.Version=v1.2.3"
var Version = "dev"

// NoLogFile disables the log file when passed to --log-file.
const NoLogFile = "-"

// Deps carries flag values and resources shared by every command.
type Deps struct {
	Runtime *toolkit.Runtime

	Verbose  bool
	LogFile  string
	LogLevel string
	LogJSON  bool
	Debounce time.Duration

	// Logger is built by the root command unless a caller provides one.
	Logger *slog.Logger

	closers []func() error
}

func (d *Deps) close() {
	for _, fn := range d.closers {
		_ = fn()
	}
	d.closers = nil
}

func (d *Deps) level() slog.Level {
	if d.Verbose {
		return slog.LevelDebug
	}
	return log.ParseLevel(d.LogLevel)
}

// setupLogger installs the logger on the command context. The log file
// defaults to letterpress.log inside the published directory.
func (d *Deps) setupLogger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if d.Logger == nil {
		file, err := d.logPath(args)
		if err != nil {
			return err
		}
		lg, shutdown, err := log.NewLogger(log.LoggerConfig{
			Version:    Version,
			Out:        d.Runtime.Stream().Err,
			File:       file,
			MaxBytes:   log.DefaultMaxBytes,
			MaxBackups: log.DefaultMaxBackups,
			Level:      d.level(),
			JSON:       d.LogJSON,
		})
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		d.closers = append(d.closers, shutdown)
		d.Logger = lg
	}
	if err := d.Runtime.SetLogger(d.Logger); err != nil {
		return err
	}
	cmd.SetContext(log.ContextWithLogger(ctx, d.Logger))
	return nil
}

// logPath returns the host path of the log file, or "" for none. The
// default file is only used once the published directory exists.
func (d *Deps) logPath(args []string) (string, error) {
	switch {
	case d.LogFile == NoLogFile:
		return "", nil
	case d.LogFile != "":
		return app.HostPath(d.Runtime, d.LogFile)
	case len(args) == 0:
		return "", nil
	}
	dir, err := app.HostPath(d.Runtime, args[0])
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", nil
	}
	return filepath.Join(dir, config.LogFileName), nil
}

// newRunner builds an app.Runner for the published directory and registers
// it for shutdown.
func (d *Deps) newRunner(cmd *cobra.Command, dir string) (*app.Runner, error) {
	r, err := app.NewRunner(app.Options{Runtime: d.Runtime, Dir: dir, Debounce: d.Debounce})
	if err != nil {
		return nil, err
	}
	d.closers = append([]func() error{func() error {
		return r.Close(context.WithoutCancel(cmd.Context()))
	}}, d.closers...)
	return r, nil
}

// NewRootCmd builds the letterpress command. Without a subcommand it
// publishes PUBLISHED_DIR and keeps the site up to date until interrupted.
func NewRootCmd(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = &Deps{}
	}

	cmd := &cobra.Command{
		Use:   "letterpress [flags] PUBLISHED_DIR",
		Short: "publish a directory of markdown posts as a static site",
		Long: `Publish PUBLISHED_DIR into the site directory named by its
letterpress.config, then watch it and update the site as posts, templates,
resources or the config change.`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if deps.Runtime == nil {
				return errors.New("runtime is required")
			}
			return deps.setupLogger(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := deps.newRunner(cmd, args[0])
			if err != nil {
				return err
			}
			return r.Watch(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&deps.Verbose, "verbose", "v", false, "log debug output")
	flags.StringVar(&deps.LogFile, "log-file", "", `log file (default PUBLISHED_DIR/letterpress.log, "-" to disable)`)
	flags.StringVar(&deps.LogLevel, "log-level", "info", "minimum log level")
	flags.BoolVar(&deps.LogJSON, "log-json", false, "output logs as JSON")
	flags.DurationVar(&deps.Debounce, "debounce", 0, "quiet period before applying file changes")
	_ = flags.MarkHidden("debounce")

	cmd.AddCommand(
		NewBuildCmd(deps),
		NewMCPCmd(deps),
	)
	return cmd
}
