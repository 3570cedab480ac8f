package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/config"
	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the web2 CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "web2",
		Short: "web2 - models, views and a json-server backend",
		Long: `A small client-side web framework rendered on the server side of the wire:
event-driven models synced over REST, views that re-render on change, and a
json-server compatible backend to sync against.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.setupLogging(cmd.ErrOrStderr())
			if _, err := opts.Config(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml, .json or .cue)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))

	return cmd
}

// setupLogging installs a text handler on w, Debug under --verbose.
func (o *RootOptions) setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)
}

// Logger returns the configured logger, slog.Default() before setup.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// Config loads the configuration once.
func (o *RootOptions) Config() (config.Config, error) {
	if o.cfg != nil {
		return *o.cfg, nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.cfg = &cfg
	return cfg, nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// ClientOptions are the flags shared by commands that talk to a backend.
type ClientOptions struct {
	*RootOptions
	URL string // resource root URL, overrides the config

	// RequestIDs overrides the request id generator (for testing).
	RequestIDs remote.RequestIDGenerator
}

func (o *ClientOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.URL, "url", "", "resource root URL (default from config: base_url/resource)")
}

// resourceURL returns --url or the configured resource URL.
func (o *ClientOptions) resourceURL() (string, error) {
	if o.URL != "" {
		return o.URL, nil
	}
	cfg, err := o.Config()
	if err != nil {
		return "", err
	}
	return cfg.Client.ResourceURL(), nil
}

func (o *ClientOptions) client() (*remote.Client, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	opts := []remote.ClientOption{
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		remote.WithLogger(o.Logger()),
	}
	if o.RequestIDs != nil {
		opts = append(opts, remote.WithRequestIDs(o.RequestIDs))
	}
	return remote.NewClient(opts...), nil
}

func (o *ClientOptions) modelOptions(extra ...model.Option) []model.Option {
	return append([]model.Option{model.WithLogger(o.Logger())}, extra...)
}
