// Package main is the entry point for the intakectl binary.
package main

import (
	"os"

	cli "duck-intake/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
