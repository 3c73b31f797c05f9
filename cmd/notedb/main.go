// Package main provides the entry point for the notedb CLI.
package main

import (
	"os"

	"github.com/notedb/notedb/cmd/notedb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
