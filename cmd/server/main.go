package main

import (
	"os"

	"github.com/mmynk/splitledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
