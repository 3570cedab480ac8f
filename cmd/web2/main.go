// Command web2 serves resources and drives the user model and views from
// the command line.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/web2/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
