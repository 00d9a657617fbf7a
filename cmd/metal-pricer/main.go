// Package main is the entry point of the metal-pricer job.
package main

import (
	"os"

	"metal-pricer/cmd/metal-pricer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
