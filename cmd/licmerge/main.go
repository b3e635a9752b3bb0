package main

import (
	"fmt"
	"os"

	"github.com/licdata/licmerge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands silence cobra's own error printing, so report here with
		// the error's exit code.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
