package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/collection"
	"github.com/roach88/web2/internal/users"
)

// userList prints one user per line in text mode.
type userList []users.User

func (l userList) String() string {
	if len(l) == 0 {
		return "no users"
	}
	lines := make([]string, len(l))
	for i, u := range l {
		lines[i] = u.String()
	}
	return strings.Join(lines, "\n")
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch the user collection",
		Long: `Fetch every user into a collection and print them in server order.

Example:
  web2 list --url http://localhost:3000/users`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(cmd)
	return cmd
}

func runList(cmd *cobra.Command, opts *ClientOptions) error {
	rootURL, err := opts.resourceURL()
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	c := users.NewCollectionWithClient(rootURL, client, opts.modelOptions(), collection.WithLogger(opts.Logger()))
	if err := c.Fetch(cmd.Context()).Wait(cmd.Context()); err != nil {
		return out.Failure(ExitFailure, "list failed", err)
	}

	list := make(userList, 0, c.Len())
	for _, m := range c.Models() {
		list = append(list, m.Attrs())
	}
	return out.Success(list)
}
