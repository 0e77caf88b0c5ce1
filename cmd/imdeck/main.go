// Command imdeck builds Information Memorandum decks from PowerPoint templates.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/imdeck/internal/adapters/driving/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
