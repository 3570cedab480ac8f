package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Driver string
	DSN    string
}

// SeedResult is the output of the seed command.
type SeedResult struct {
	File    string `json:"file"`
	Records int    `json:"records"`
}

func (r SeedResult) String() string {
	return fmt.Sprintf("seeded %d records from %s", r.Records, r.File)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a YAML seed file into the store",
		Long: `Upsert every record of a seed file into the store.

The file maps resource names to lists of records, each with an integer id:

  users:
    - {id: 1, name: alice, age: 30}

Example:
  web2 seed db.yaml --db web2.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver: sqlite3 or pgx (default from config)")
	cmd.Flags().StringVar(&opts.DSN, "db", "", "database path or DSN (default from config)")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions, path string) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	if opts.Driver == "" {
		opts.Driver = cfg.Server.Driver
	}
	if opts.DSN == "" {
		opts.DSN = cfg.Server.DSN
	}
	out := opts.formatter(cmd)

	seed, err := store.LoadSeedFile(path)
	if err != nil {
		return out.Failure(ExitCommandError, "failed to load seed", err)
	}

	st, err := store.OpenDriver(opts.Driver, opts.DSN)
	if err != nil {
		return out.Failure(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	out.VerboseLog("Applying %d resources to %s", len(seed), opts.DSN)
	n, err := st.Apply(cmd.Context(), seed)
	if err != nil {
		return out.Failure(ExitFailure, "failed to apply seed", err)
	}
	return out.Success(SeedResult{File: path, Records: n})
}
