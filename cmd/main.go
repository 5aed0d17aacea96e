package main

import (
	"os"

	"github.com/FlomaWen/party-game/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
