// Package main is the entry point for the shmorph CLI.
package main

import "shmorph.dev/pkg/shmorph/cmd"

func main() {
	cmd.Execute()
}
