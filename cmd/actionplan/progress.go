// Package main progress, history and undo commands.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/plan"
)

func progressCmd() *cobra.Command {
	var trend bool
	cmd := &cobra.Command{
		Use:   "progress [plan_id]",
		Short: "Show plan progress (latest plan if no ID given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				id, err := resolvePlanID(ctx, eng, args)
				if err != nil {
					return err
				}
				r := newRenderer()
				if trend {
					snaps, err := eng.ProgressHistory(ctx, id, 0)
					if err != nil {
						return err
					}
					fmt.Print(r.Trend(snaps))
					return nil
				}
				p, err := eng.GetPlan(ctx, id)
				if err != nil {
					return err
				}
				fmt.Print(r.Progress(plan.Recompute(p)))
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&trend, "trend", false, "show the persisted progress trend instead of the current state")
	return cmd
}

func historyCmd() *cobra.Command {
	var from int64
	cmd := &cobra.Command{
		Use:   "history [plan_id]",
		Short: "Show the mutation ledger (latest plan if no ID given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				id, err := resolvePlanID(ctx, eng, args)
				if err != nil {
					return err
				}
				entries, err := eng.History(ctx, id, from)
				if err != nil {
					return err
				}
				fmt.Print(newRenderer().History(entries))
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "show entries after this version")
	return cmd
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <plan_id>",
		Short: "Revert your most recent mutation on a plan",
		Long: `Undo applies the inverse of your most recent mutation as a new
mutation. History is never rewritten; the undo itself is recorded.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				p, entry, err := eng.Undo(ctx, args[0], config.Env().ActorID)
				if err != nil {
					return err
				}
				fmt.Printf("UNDONE: %s (now v%d)\n", entry.Op, p.Version)
				fmt.Print(newRenderer().Plan(p))
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
}
