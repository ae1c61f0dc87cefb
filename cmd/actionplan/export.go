// Package main export commands.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/export"
	"github.com/joss/actionplan/internal/graph"
	"github.com/joss/actionplan/internal/metrics"
)

func exportCmd() *cobra.Command {
	var format, out string
	var includeCompleted, includeSkipped, toGraph bool

	cmd := &cobra.Command{
		Use:   "export [plan_id]",
		Short: "Export a plan snapshot (latest plan if no ID given)",
		Long: `Export a plan as json, csv or markdown with dependency titles
resolved and per-phase rollups attached. With --graph the plan's DAG
is also projected into the configured graph database.

Examples:
  actionplan export p1 --format markdown --out roadmap.md
  actionplan export p1 --format json --completed --skipped
  actionplan export p1 --graph`,
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

				if toGraph {
					driver := graph.ConnectWithRetry(3)
					if driver == nil {
						return fmt.Errorf("graph database unavailable")
					}
					defer driver.Close()
					if err := graph.NewProjector(driver).Sync(ctx, p); err != nil {
						return err
					}
					fmt.Printf("PROJECTED: %s into %s\n", p.ID, config.Env().Neo4jURI)
				}

				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				snap := export.Build(p, export.Options{
					IncludeCompleted: includeCompleted,
					IncludeSkipped:   includeSkipped,
				})
				data, err := export.Serialize(snap, f)
				metrics.Global().RecordExport(err == nil)
				if err != nil {
					return err
				}

				if out == "" {
					os.Stdout.Write(data)
					return nil
				}
				path := out
				if path == "auto" {
					if err := config.EnsureDir(config.GetPaths().Exports); err != nil {
						return err
					}
					name := fmt.Sprintf("%s-%s.%s", p.ID, time.Now().UTC().Format("20060102-150405"), ext(f))
					path = filepath.Join(config.GetPaths().Exports, name)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return err
				}
				fmt.Printf("EXPORTED: %s\n", path)
				return nil
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json|csv|markdown")
	cmd.Flags().StringVar(&out, "out", "", "output file ('auto' writes under ~/.actionplan/exports)")
	cmd.Flags().BoolVar(&includeCompleted, "completed", false, "include completed tasks")
	cmd.Flags().BoolVar(&includeSkipped, "skipped", false, "include skipped tasks")
	cmd.Flags().BoolVar(&toGraph, "graph", false, "also project the plan into the graph database")
	return cmd
}

func ext(f export.Format) string {
	switch f {
	case export.FormatCSV:
		return "csv"
	case export.FormatMarkdown:
		return "md"
	}
	return "json"
}
