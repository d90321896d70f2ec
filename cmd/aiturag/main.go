// Package main provides the entry point for the aiturag CLI.
package main

import (
	"os"

	"github.com/aitu-rag/aiturag/cmd/aiturag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
