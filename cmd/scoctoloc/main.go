package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scocto/scoctoloc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "scoctoloc:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
