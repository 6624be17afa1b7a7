// Package main provides the taskforge CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/taskforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
