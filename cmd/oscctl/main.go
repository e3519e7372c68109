package main

import (
	"os"

	"github.com/amp-labs/osc/cmd/oscctl/cmd"
)

// Set at build time with -ldflags.
var version = "dev" //nolint:gochecknoglobals

func main() {
	if err := cmd.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
