package main

import (
	"os"

	"github.com/rustyeddy/expiry/cmd/expiry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
