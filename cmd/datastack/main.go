// Command datastack inspects and edits a datastack store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/datastack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
