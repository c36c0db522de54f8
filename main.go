package main

import (
	"os"

	"github.com/darp-registry/darp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
