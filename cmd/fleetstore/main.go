// Command fleetstore is the entry point; all logic lives in internal/cli.
//
//	go build -o bin/fleetstore ./cmd/fleetstore
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse HEAD)" ./cmd/fleetstore
package main

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/fleetstore/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
