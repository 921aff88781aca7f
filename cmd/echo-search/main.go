package main

import (
	"fmt"
	"os"

	"github.com/untoldecay/RuneEcho/internal/logging"
)

func main() {
	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
