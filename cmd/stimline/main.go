// Command stimline compiles stimulus timelines, runs scripted sessions and
// exports their results.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/stimline/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
