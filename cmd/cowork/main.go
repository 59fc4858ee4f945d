// Command cowork serves and inspects collaborative workspaces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cowork/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
