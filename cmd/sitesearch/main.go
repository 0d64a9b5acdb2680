// Command sitesearch is the entry point for the site search CLI.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/sitesearch-cli/internal/adapters/driving/cli"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
