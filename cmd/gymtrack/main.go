package main

import (
	"fmt"
	"os"

	"github.com/roach88/gymtrack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorMsg("%v", err))
		os.Exit(cli.GetExitCode(err))
	}
}
