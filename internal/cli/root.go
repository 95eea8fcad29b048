// Package cli implements the roomchat command line: a server command plus
// one-shot and interactive room commands that talk to the storage area
// directly.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hh6422123-cyber/Eak/internal/app"
	"github.com/hh6422123-cyber/Eak/internal/config"
	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/store"
)

// Options wires the command tree to its environment.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Area replaces the configured storage backend. It is not closed by
	// the commands.
	Area store.Area
}

type runtime struct {
	opts Options

	configPath string
	logLevel   string
	backend    string

	cfg    config.Config
	logger *zerolog.Logger
}

// NewRootCommand builds the roomchat command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	r := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "roomchat",
		Short:         "Polling chat rooms on a shared storage area",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return r.load()
		},
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&r.configPath, "config", "", "path to the yaml config file")
	flags.StringVar(&r.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	flags.StringVar(&r.backend, "backend", "", "storage backend (memory, file, sqlite, redis)")

	root.AddCommand(
		newServeCommand(r),
		newCreateCommand(r),
		newExistsCommand(r),
		newSendCommand(r),
		newMessagesCommand(r),
		newChatCommand(r),
	)
	return root
}

// Execute runs the command tree and prints a failing command's error. With
// no args, the process arguments are used.
func Execute(ctx context.Context, opts Options, args ...string) error {
	root := NewRootCommand(opts)
	if args != nil {
		root.SetArgs(args)
	}
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "roomchat: %v\n", err)
		return err
	}
	return nil
}

// load resolves configuration. Flags win over env and file values.
func (r *runtime) load() error {
	bootLevel := r.logLevel
	if bootLevel == "" {
		bootLevel = "warn"
	}

	cfg, path, err := config.Load(log.NewWithWriter(r.opts.Err, bootLevel), r.configPath)
	if err != nil {
		return err
	}
	if r.logLevel != "" {
		cfg.LogLevel = r.logLevel
	}
	if r.backend != "" {
		cfg.Storage.Backend = r.backend
	}

	r.cfg = cfg
	r.logger = log.NewWithWriter(r.opts.Err, cfg.LogLevel)
	r.logger.Debug().Str("config", path).Str("backend", cfg.Storage.Backend).Msg("configuration loaded")
	return nil
}

// open builds the application on the configured or injected area.
func (r *runtime) open(ctx context.Context) (*app.App, func(), error) {
	appOpts := []app.Option{app.WithAlerter(printAlerter{w: r.opts.Err})}
	if r.opts.Area != nil {
		appOpts = append(appOpts, app.WithArea(unclosable{r.opts.Area}))
	}

	application, err := app.New(ctx, &r.cfg, r.logger, appOpts...)
	if err != nil {
		return nil, nil, err
	}
	return application, application.Close, nil
}

// printAlerter writes abandoned-write alerts where the user sees them.
type printAlerter struct {
	w io.Writer
}

func (a printAlerter) Alert(err error) {
	fmt.Fprintf(a.w, "alert: your changes could not be saved: %v\n", err)
}

type unclosable struct {
	store.Area
}

func (unclosable) Close() error { return nil }
