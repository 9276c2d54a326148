// Package main is the entry point for the lswitch learning switch.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/lswitch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
