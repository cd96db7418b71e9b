// Command docselect parses, analyzes and evaluates document selections, and
// runs them against a local document store.
//
// Logging:
//   - Base logger is created from the --log-format and --log-level flags
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"os"

	"docselect/cmd/docselect/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
