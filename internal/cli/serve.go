package cli

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/server"
	"github.com/roach88/web2/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	Driver string
	DSN    string
	Seed   string

	// Listener, when set, is used instead of listening on Addr (for testing).
	Listener net.Listener
	// Context, when set, replaces the signal-cancelled context (for testing).
	Context context.Context
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	return newServeCommand(opts)
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the json-server compatible resource backend",
		Long: `Serve resources over REST from a SQL store.

Routes: GET/POST /{resource}, GET/PUT/PATCH/DELETE /{resource}/{id},
GET /healthz and GET /metrics. An optional seed file is applied at startup.

Example:
  web2 serve --addr :3000 --db web2.db --seed db.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver: sqlite3 or pgx (default from config)")
	cmd.Flags().StringVar(&opts.DSN, "db", "", "database path or DSN (default from config)")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed file applied at startup")

	return cmd
}

func (o *ServeOptions) resolve() error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	if o.Addr == "" {
		o.Addr = cfg.Server.Addr
	}
	if o.Driver == "" {
		o.Driver = cfg.Server.Driver
	}
	if o.DSN == "" {
		o.DSN = cfg.Server.DSN
	}
	if o.Seed == "" {
		o.Seed = cfg.Server.Seed
	}
	return nil
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	if err := opts.resolve(); err != nil {
		return err
	}
	logger := opts.Logger()

	ctx := opts.Context
	if ctx == nil {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	st, err := store.OpenDriver(opts.Driver, opts.DSN)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Seed != "" {
		seed, err := store.LoadSeedFile(opts.Seed)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load seed", err)
		}
		n, err := st.Apply(ctx, seed)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to apply seed", err)
		}
		logger.Info("seed applied", "file", opts.Seed, "records", n)
	}

	srv := server.New(opts.Addr, server.NewHandler(st, server.WithLogger(logger)), logger)
	if opts.Listener != nil {
		err = srv.Serve(ctx, opts.Listener)
	} else {
		err = srv.ListenAndServe(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	logger.Info("server stopped")
	return nil
}
