package main

import (
	"os"

	"github.com/signalsfoundry/carecascade-simulator/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
