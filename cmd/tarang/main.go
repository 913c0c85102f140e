// Package main provides the entry point for the tarang CLI.
package main

import (
	"os"

	"github.com/tarang-dev/tarang/cmd/tarang/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
