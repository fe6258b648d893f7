package main

import (
	"os"

	"github.com/ragdesk-dev/ragdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
