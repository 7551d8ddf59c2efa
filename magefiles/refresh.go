//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Refresh builds the CLI and runs a batch over every watch.
func Refresh() error {
	mg.Deps(Build)
	return sh.RunV("./bin/figure-watch", "run")
}
