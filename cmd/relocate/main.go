package main

import (
	"os"

	"relocate/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
