package main

import (
	"os"

	"github.com/PAXECT-Interface/paxect-harness/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
