// Package main provides the entry point for the orgai console client.
package main

import (
	"fmt"
	"os"

	"github.com/suPer8Hu/orgai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
