// Package main is the entry point for the ledger-migrate CLI.
package main

import (
	"os"

	"github.com/pigeonworks-llc/legacy-ledger/cmd/ledger-migrate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
