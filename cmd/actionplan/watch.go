// Package main watch command: live terminal view of a plan.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/tui"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [plan_id]",
		Short: "Watch a plan update live (latest plan if no ID given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				id, err := resolvePlanID(ctx, eng, args)
				if err != nil {
					return err
				}
				return tui.Run(eng, id)
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
}
