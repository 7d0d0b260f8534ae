// Package main is the single-binary entrypoint for gamify.
package main

import "github.com/campusclub/gamify/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
