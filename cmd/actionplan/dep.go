// Package main dependency commands.
package main

import (
	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/plan"
)

func depCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Prerequisite dependencies between tasks",
	}

	addCmd := &cobra.Command{
		Use:   "add <plan_id> <prerequisite_id> <dependent_id>",
		Short: "Require one task before another",
		Long: `Add a prerequisite edge: the dependent task cannot be completed
until the prerequisite is completed or skipped. Edges that would form
a cycle are rejected.`,
		Args: cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{
				Op:             plan.OpAddDependency,
				PrerequisiteID: args[1],
				TaskID:         args[2],
			})
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <plan_id> <edge_id>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{
				Op:     plan.OpRemoveDependency,
				EdgeID: args[1],
			})
		},
	}

	cmd.AddCommand(addCmd, rmCmd)
	return cmd
}
