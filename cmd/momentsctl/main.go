// Package main provides momentsctl, a command line tool that runs the media
// compositor locally.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
