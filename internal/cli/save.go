package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/users"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	ClientOptions
	Name string
	Age  int
	ID   int64
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}
	return newSaveCommand(opts)
}

func newSaveCommand(opts *SaveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a user and print it when the backend confirms",
		Long: `Build a user model and save it. Without --id the user is created (POST);
with --id it is replaced (PUT). The saved user is printed when the model
fires "save"; a failure is printed when it fires "error".

Example:
  web2 save --name alice --age 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Name, "name", "", "user name")
	cmd.Flags().IntVar(&opts.Age, "age", 0, "user age")
	cmd.Flags().Int64Var(&opts.ID, "id", 0, "existing user id (update instead of create)")

	return cmd
}

func runSave(cmd *cobra.Command, opts *SaveOptions) error {
	rootURL, err := opts.resourceURL()
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	var rec users.User
	if cmd.Flags().Changed("name") {
		rec.Name = &opts.Name
	}
	if cmd.Flags().Changed("age") {
		rec.Age = &opts.Age
	}
	if opts.ID != 0 {
		rec.ID = &opts.ID
	}

	m := users.NewWithClient(rec, rootURL, client, opts.modelOptions()...)

	// Listeners run before the pending resolves, so result is set once
	// Done is closed. The request itself honours the command context.
	var result error
	m.On(model.EventSave, func() {
		result = out.Success(m.Attrs())
	})
	m.On(model.EventError, func() {
		result = out.Failure(ExitFailure, "save failed", m.Err())
	})

	out.VerboseLog("Saving %s to %s", rec, rootURL)
	p := m.Save(cmd.Context())
	<-p.Done()
	if err := p.Err(); err != nil && result == nil {
		return out.Failure(ExitFailure, "save failed", err)
	}
	return result
}
