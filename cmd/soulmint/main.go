package main

import (
	"fmt"
	"os"
)

var (
	version   = "dev"
	gitCommit string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
