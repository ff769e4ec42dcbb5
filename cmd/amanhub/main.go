// Package main provides the entry point for the amanhub CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/amanhub/cmd/amanhub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
