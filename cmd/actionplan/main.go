// Package main provides the actionplan CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/render"
	"github.com/joss/actionplan/internal/store"
)

var (
	version = "0.1.0"
	pretty  = true
)

func main() {
	pretty = term.IsTerminal(int(os.Stdout.Fd()))

	rootCmd := &cobra.Command{
		Use:   "actionplan",
		Short: "Task dependency graph and progress tracking engine",
		Long: `actionplan tracks execution roadmaps: phased plans with ordered
tasks, prerequisite dependencies, progress rollups and a full
mutation history.

Use 'actionplan plan create' to seed a plan from a generated payload,
'actionplan serve' to run the HTTP API, and 'actionplan watch' for a
live terminal view.`,
	}
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", pretty, "colorized output")

	rootCmd.AddCommand(
		serveCmd(),
		planCmd(),
		taskCmd(),
		depCmd(),
		progressCmd(),
		historyCmd(),
		undoCmd(),
		exportCmd(),
		watchCmd(),
		backupCmd(),
		doctorCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("actionplan %s\n", version)
		},
	}
}

// withEngine opens the store, runs fn, and tears everything down.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	dbPath := config.DBPath()
	if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(st, engine.WithValidationTimeout(config.Env().ValidationTimeout))
	defer eng.Close()

	return fn(context.Background(), eng)
}

func fatalError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newRenderer() *render.Renderer {
	return render.New(pretty)
}
