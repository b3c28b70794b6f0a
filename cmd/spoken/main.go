package main

import (
	"os"

	"github.com/Rashinban1988/spokenmaterial/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
