package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/users"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	ClientOptions
	Types  []string // selector=value
	Clicks []string // selectors, dispatched in order
}

// RenderResult is the output of the render command.
type RenderResult struct {
	HTML    string     `json:"html"`
	Renders int        `json:"renders"`
	User    users.User `json:"user"`
}

func (r RenderResult) String() string {
	return r.HTML
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render the user edit view for a user",
		Long: `Fetch a user, mount the UserEdit view into an empty document and print
the rendered body. --type values are applied first, then --click events are
dispatched in order; a click on "Save User" waits for the save.

Example:
  web2 render 1 --type input=bob --click .set-name --click .save-model`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(cmd)
	cmd.Flags().StringArrayVar(&opts.Types, "type", nil, "set an element value before clicking (selector=value, repeatable)")
	cmd.Flags().StringArrayVar(&opts.Clicks, "click", nil, "dispatch a click on the first match (repeatable)")

	return cmd
}

func runRender(cmd *cobra.Command, opts *RenderOptions, arg string) error {
	id, err := parseUserID(arg)
	if err != nil {
		return err
	}
	types := make([][2]string, 0, len(opts.Types))
	for _, t := range opts.Types {
		sel, val, ok := strings.Cut(t, "=")
		if !ok || strings.TrimSpace(sel) == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --type %q: want selector=value", t))
		}
		types = append(types, [2]string{sel, val})
	}

	out := opts.formatter(cmd)
	s, stop, err := openSession(cmd, &opts.ClientOptions, id)
	if err != nil {
		return err
	}
	defer stop()

	for _, t := range types {
		out.VerboseLog("type %s = %q", t[0], t[1])
		if err := s.Type(t[0], t[1]); err != nil {
			return out.Failure(ExitFailure, "type failed", err)
		}
	}
	for _, sel := range opts.Clicks {
		out.VerboseLog("click %s", sel)
		if err := s.Click(sel); err != nil {
			return out.Failure(ExitFailure, "click failed", err)
		}
	}

	return out.Success(RenderResult{HTML: s.HTML(), Renders: s.Renders(), User: s.User()})
}

// openSession starts a loop, fetches user id with continuations on that
// loop and mounts a Session. stop closes the session and the loop.
func openSession(cmd *cobra.Command, opts *ClientOptions, id int64) (*Session, func(), error) {
	rootURL, err := opts.resourceURL()
	if err != nil {
		return nil, nil, err
	}
	client, err := opts.client()
	if err != nil {
		return nil, nil, err
	}
	out := opts.formatter(cmd)

	ctx, cancel := context.WithCancel(cmd.Context())
	l := loop.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	shutdown := func() {
		l.Close()
		cancel()
		<-done
	}

	m := users.NewWithClient(users.User{ID: &id}, rootURL, client,
		opts.modelOptions(model.WithExecutor(l))...)
	out.VerboseLog("Fetching %s/%d", rootURL, id)
	if err := m.Fetch(ctx).Wait(ctx); err != nil {
		shutdown()
		return nil, nil, out.Failure(ExitFailure, "fetch failed", err)
	}

	s, err := NewSession(ctx, l, m, cmd.OutOrStdout(), users.WithFormLogger(opts.Logger()))
	if err != nil {
		shutdown()
		return nil, nil, out.Failure(ExitFailure, "mount failed", err)
	}
	return s, func() {
		s.Close()
		shutdown()
	}, nil
}
