// Package main is the entry point for vmctl.
package main

import (
	"fmt"
	"os"

	"github.com/progamer242688/vm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
