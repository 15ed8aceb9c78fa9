package main

import (
	"os"

	"github.com/ankitpatel990/neuvox/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
