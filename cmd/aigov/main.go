// Package main is the single-binary entrypoint for aigov.
package main

import "github.com/tutu-network/aigov/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
