package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:           "researchflow",
		Short:         "Multi-agent research report service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
