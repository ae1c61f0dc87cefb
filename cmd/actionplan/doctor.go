package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/selftest"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment",
		Long: `Doctor verifies the data directory is writable, the database opens,
and the optional graph database is reachable. The graph check only
warns: projection is disabled without it, nothing else breaks.`,
		Run: func(cmd *cobra.Command, args []string) {
			env := selftest.Check()
			fmt.Print(env.Report())
			if !env.Healthy() {
				os.Exit(1)
			}
		},
	}
}
