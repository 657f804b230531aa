package main

import (
	"os"

	"github.com/meyer/rwb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
