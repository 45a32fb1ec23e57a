//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Process builds the CLI and runs a full triage pass over the last week.
func Process() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "process")
}

// DryRun builds the CLI and runs a pass that stops after resolution,
// making no judge calls.
func DryRun() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "process", "--dry-run")
}

// Setup builds the CLI and walks through the Gmail OAuth consent flow.
func Setup() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "setup")
}

// Status builds the CLI and lists recent runs from the record store.
func Status() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "show", "--runs")
}
