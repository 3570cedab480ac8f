package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
)

var replCompleter = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("show"),
	readline.PcItem("attrs"),
	readline.PcItem("click",
		readline.PcItem(".set-name"),
		readline.PcItem(".set-age"),
		readline.PcItem(".save-model"),
	),
	readline.PcItem("type",
		readline.PcItem("input"),
	),
	readline.PcItem("set",
		readline.PcItem("name"),
		readline.PcItem("age"),
	),
	readline.PcItem("save"),
	readline.PcItem("fetch"),
	readline.PcItem("quit"),
	readline.PcItem("exit"),
)

func filterReplInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	ClientOptions
	HistoryFile string
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "repl <id>",
		Short: "Interactively drive the user edit view",
		Long: `Fetch a user, mount the UserEdit view and read commands that dispatch
events on it: click, type, set, save, fetch, show. Type help for the list.

Example:
  web2 repl 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd, opts, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.HistoryFile, "history", ".web2_history", "history file")

	return cmd
}

func runRepl(cmd *cobra.Command, opts *ReplOptions, arg string) error {
	id, err := parseUserID(arg)
	if err != nil {
		return err
	}
	s, stop, err := openSession(cmd, &opts.ClientOptions, id)
	if err != nil {
		return err
	}
	defer stop()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("users/%d> ", id),
		HistoryFile:     opts.HistoryFile,
		AutoComplete:    replCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterReplInput,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start readline", err)
	}
	defer rl.Close()

	fmt.Fprintln(cmd.OutOrStdout(), s.HTML())
	return readLoop(s, rl.Readline, cmd.ErrOrStderr())
}

// readLoop feeds lines from next to s until quit or end of input.
// Command errors are reported to errOut and do not end the loop.
func readLoop(s *Session, next func() (string, error), errOut io.Writer) error {
	for {
		line, err := next()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if len(line) == 0 {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return WrapExitError(ExitFailure, "read failed", err)
		}

		if err := s.Exec(line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}
