// Package main provides the amberfile command-line entry point.
package main

import (
	"fmt"
	"os"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "amberfile:", err)
		os.Exit(1)
	}
}
