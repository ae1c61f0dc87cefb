// Package main plan lifecycle commands.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/graph"
	"github.com/joss/actionplan/internal/ingest"
	"github.com/joss/actionplan/internal/plan"
)

// resolvePlanID maps an optional CLI argument to a plan ID, defaulting
// to the most recently updated plan.
func resolvePlanID(ctx context.Context, eng *engine.Engine, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	plans, err := eng.ListPlans(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(plans) == 0 {
		return "", fmt.Errorf("no plans found")
	}
	return plans[0].ID, nil
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan lifecycle",
	}

	var payloadPath string
	var analysisID string
	createCmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a plan from a generated payload",
		Long: `Create a plan seeded from a generated payload file.

Examples:
  actionplan plan create "Butcher shop roadmap" --from plan.json
  cat plan.json | actionplan plan create "Roadmap" --from -`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			seed, err := ingest.Load(payloadPath)
			if err != nil {
				fatalError(err)
			}
			err = withEngine(func(ctx context.Context, eng *engine.Engine) error {
				p, err := eng.CreatePlan(ctx, args[0], analysisID, config.Env().ActorID, seed)
				if err != nil {
					return err
				}
				fmt.Printf("PLAN CREATED: %s\n", p.ID)
				fmt.Print(newRenderer().Plan(p))
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
	createCmd.Flags().StringVar(&payloadPath, "from", "-", "generated payload file ('-' for stdin)")
	createCmd.Flags().StringVar(&analysisID, "analysis", "", "originating analysis ID")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plans, most recently updated first",
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				plans, err := eng.ListPlans(ctx, 50)
				if err != nil {
					return err
				}
				if len(plans) == 0 {
					fmt.Println("No plans")
					return nil
				}
				for _, p := range plans {
					status := ""
					if p.Status == plan.PlanArchived {
						status = " (archived)"
					}
					fmt.Printf("%s  v%-4d %s%s\n", p.ID, p.Version, p.Title, status)
				}
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [plan_id]",
		Short: "Show plan details (latest if no ID given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				id, err := resolvePlanID(ctx, eng, args)
				if err != nil {
					return err
				}
				p, err := eng.GetPlan(ctx, id)
				if err != nil {
					return err
				}
				fmt.Print(newRenderer().Plan(p))
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}

	archiveCmd := &cobra.Command{
		Use:   "archive <plan_id>",
		Short: "Archive a plan (rejects further mutations)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{Op: plan.OpArchivePlan})
		},
	}

	unarchiveCmd := &cobra.Command{
		Use:   "unarchive <plan_id>",
		Short: "Reopen an archived plan",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runMutation(args[0], plan.Mutation{Op: plan.OpUnarchivePlan})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats [plan_id]",
		Short: "Graph analysis: blocked tasks and longest prerequisite chain",
		Long: `Stats projects the plan into the graph database and reports which
tasks are blocked by unsatisfied prerequisites and how deep the longest
prerequisite chain runs.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				id, err := resolvePlanID(ctx, eng, args)
				if err != nil {
					return err
				}
				p, err := eng.GetPlan(ctx, id)
				if err != nil {
					return err
				}

				driver := graph.ConnectWithRetry(3)
				if driver == nil {
					return fmt.Errorf("graph database unavailable")
				}
				defer driver.Close()

				pr := graph.NewProjector(driver)
				if err := pr.Sync(ctx, p); err != nil {
					return err
				}
				blocked, err := pr.BlockedTasks(ctx, p.ID)
				if err != nil {
					return err
				}
				depth, err := pr.LongestChain(ctx, p.ID)
				if err != nil {
					return err
				}

				fmt.Printf("%s  v%d  %s\n", p.ID, p.Version, p.Title)
				fmt.Printf("longest prerequisite chain: %d\n", depth)
				if len(blocked) == 0 {
					fmt.Println("blocked tasks: none")
					return nil
				}
				fmt.Printf("blocked tasks: %d\n", len(blocked))
				for _, taskID := range blocked {
					title := taskID
					if t, _ := p.FindTask(taskID); t != nil {
						title = t.Title
					}
					fmt.Printf("  - %s\n", title)
				}
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}

	cmd.AddCommand(createCmd, listCmd, showCmd, statsCmd, archiveCmd, unarchiveCmd)
	return cmd
}

// runMutation applies one mutation against the plan's current version
// and renders the result.
func runMutation(planID string, m plan.Mutation) {
	err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
		cur, err := eng.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		m.ActorID = config.Env().ActorID
		next, _, err := eng.Apply(ctx, planID, m, cur.Version)
		if err != nil {
			return err
		}
		fmt.Print(newRenderer().Plan(next))
		return nil
	})
	if err != nil {
		fatalError(err)
	}
}
