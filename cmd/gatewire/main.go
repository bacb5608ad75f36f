package main

import (
	"fmt"
	"os"

	"github.com/denniswebb/gatewire/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gatewire: %v\n", err)
		os.Exit(1)
	}
}
