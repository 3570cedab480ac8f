package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/users"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Fetch a user by id",
		Long: `Load a user model by id from the backend and print it.

Example:
  web2 fetch 1 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(cmd)
	return cmd
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, "invalid user id "+strconv.Quote(arg))
	}
	return id, nil
}

func runFetch(cmd *cobra.Command, opts *ClientOptions, arg string) error {
	id, err := parseUserID(arg)
	if err != nil {
		return err
	}
	m, err := fetchUser(cmd, opts, id)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(m.Attrs())
}

// fetchUser loads user id, reporting failures through the formatter.
func fetchUser(cmd *cobra.Command, opts *ClientOptions, id int64) (*users.Model, error) {
	rootURL, err := opts.resourceURL()
	if err != nil {
		return nil, err
	}
	client, err := opts.client()
	if err != nil {
		return nil, err
	}
	out := opts.formatter(cmd)

	m := users.NewWithClient(users.User{ID: &id}, rootURL, client, opts.modelOptions()...)
	out.VerboseLog("Fetching %s/%d", rootURL, id)
	if err := m.Fetch(cmd.Context()).Wait(cmd.Context()); err != nil {
		return nil, out.Failure(ExitFailure, "fetch failed", err)
	}
	return m, nil
}
