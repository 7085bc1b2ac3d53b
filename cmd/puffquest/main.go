package main

import (
	"os"

	"github.com/solpxlb/puffquest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
