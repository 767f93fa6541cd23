// Package main is the entry point for Prism.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/prism/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
