package main

import (
	"os"

	"github.com/magsand/smartcharge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
