package main

import (
	"os"

	"github.com/PabloGalante/farum-studio/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
