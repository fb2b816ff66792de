package main

import (
	"fmt"
	"os"

	"github.com/rehza97/billing-reconciler/cmd/reconciler/cmd"
)

// Version information set by build flags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
