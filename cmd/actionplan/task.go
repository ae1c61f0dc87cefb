// Package main task commands.
package main

import (
	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/plan"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task operations within a plan",
	}

	var phaseID, description, estimate, after string
	var resources []string
	addCmd := &cobra.Command{
		Use:   "add <plan_id> <title>",
		Short: "Add a task to a phase",
		Long: `Add a task to a phase. Without --after the task is appended;
--after START prepends it.

Examples:
  actionplan task add p1 "Call suppliers" --phase ph2
  actionplan task add p1 "Sign lease" --phase ph2 --after <task_id>`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			m := plan.Mutation{
				Op:            plan.OpAddTask,
				PhaseID:       phaseID,
				Title:         args[1],
				Description:   description,
				EstimatedTime: estimate,
				Resources:     resources,
				CreatedBy:     plan.OriginUser,
			}
			if after == "START" {
				m.Prepend = true
			} else {
				m.AfterTaskID = after
			}
			runMutation(args[0], m)
		},
	}
	addCmd.Flags().StringVar(&phaseID, "phase", "", "phase ID (required)")
	addCmd.Flags().StringVar(&description, "desc", "", "task description")
	addCmd.Flags().StringVar(&estimate, "estimate", "", "estimated time, free text")
	addCmd.Flags().StringSliceVar(&resources, "resource", nil, "resource link (repeatable)")
	addCmd.Flags().StringVar(&after, "after", "", "insert after this task ID, or START")
	addCmd.MarkFlagRequired("phase")

	var title, desc, est string
	editCmd := &cobra.Command{
		Use:   "edit <plan_id> <task_id>",
		Short: "Edit task content",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			m := plan.Mutation{Op: plan.OpEditTask, TaskID: args[1]}
			if cmd.Flags().Changed("title") {
				m.NewTitle = &title
			}
			if cmd.Flags().Changed("desc") {
				m.NewDescription = &desc
			}
			if cmd.Flags().Changed("estimate") {
				m.NewEstimatedTime = &est
			}
			runMutation(args[0], m)
		},
	}
	editCmd.Flags().StringVar(&title, "title", "", "new title")
	editCmd.Flags().StringVar(&desc, "desc", "", "new description")
	editCmd.Flags().StringVar(&est, "estimate", "", "new estimate")

	var override bool
	statusCmd := &cobra.Command{
		Use:   "status <plan_id> <task_id> <status>",
		Short: "Set task status (not_started|in_progress|completed|skipped)",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{
				Op:       plan.OpSetStatus,
				TaskID:   args[1],
				Status:   plan.Status(args[2]),
				Override: override,
			})
		},
	}
	statusCmd.Flags().BoolVar(&override, "override", false, "bypass the dependency gate (recorded in history)")

	var newOrder int
	moveCmd := &cobra.Command{
		Use:   "move <plan_id> <task_id>",
		Short: "Move a task within its phase",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{
				Op:       plan.OpReorderTask,
				TaskID:   args[1],
				NewOrder: newOrder,
			})
		},
	}
	moveCmd.Flags().IntVar(&newOrder, "to", 0, "target position (zero-based, clamped)")
	moveCmd.MarkFlagRequired("to")

	rmCmd := &cobra.Command{
		Use:   "rm <plan_id> <task_id>",
		Short: "Delete a task (undoable)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{
				Op:     plan.OpDeleteTask,
				TaskID: args[1],
			})
		},
	}

	cmd.AddCommand(addCmd, editCmd, statusCmd, moveCmd, rmCmd)
	return cmd
}
