// Command greenledger records activity data and reports GHG emissions,
// reporting compliance, sector grades, ESG scores and uncertainty.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshade/greenledger/internal/cli"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/pkg/version"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitValidation = 2
)

func main() {
	err := run(context.Background(), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func run(ctx context.Context, args []string) error {
	root := cli.NewRootCmd(version.GetVersion())
	root.SetVersionTemplate("greenledger {{.Version}} (commit " + version.GetCommit() + ")\n")
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// exitCode maps rejected input to 2 and every other failure to 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case greenops.IsValidation(err):
		return exitValidation
	default:
		return exitError
	}
}
