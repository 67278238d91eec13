// Package main is the entry point for the Krypt CLI.
package main

import (
	"os"

	"github.com/mrz1836/krypt/internal/cli"
)

//nolint:gochecknoglobals // Set via ldflags at build time
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
