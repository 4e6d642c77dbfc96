package main

import (
	"os"

	"github.com/spigell/govcon-responder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
