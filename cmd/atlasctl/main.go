package main

import (
	"os"
)

var version = "dev"

func main() {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
