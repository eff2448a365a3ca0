// Package main provides the entry point for the codevec CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/codevec/cmd/codevec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
