// Package main provides the entry point for the datachat CLI.
package main

import (
	"os"

	"github.com/jaewoo-dev/datachat/cmd/datachat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
