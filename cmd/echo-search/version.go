package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is overridden by ldflags at release build time.
	Version = "0.3.0"
	// Build can be set via ldflags at compile time.
	Build = "dev"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionJSON {
			data, _ := json.Marshal(map[string]string{"version": Version, "build": Build})
			fmt.Println(string(data))
			return
		}
		fmt.Printf("echo-search version %s (%s)\n", Version, Build)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(versionCmd)
}
