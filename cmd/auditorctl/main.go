// Package main provides the entry point for auditorctl.
package main

import (
	"fmt"
	"os"

	"github.com/OFF-rtk/sentinel-auditor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
