// Package main is the entry point for the taskmatrix CLI.
package main

import (
	"os"

	"github.com/AndreyAkinshin/taskmatrix/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
