package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffpull/ffpull/internal/engine"
	"github.com/ffpull/ffpull/internal/manager"
	"github.com/ffpull/ffpull/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync [index...]",
	GroupID: "sync",
	Short:   "Fast-forward registered projects to their origin",
	Long: `Fetch each selected project's branch from origin and fast-forward the
local branch when possible. Diverged projects are reported as conflicts and
left untouched.

A failing project never stops the batch. Ctrl+C stops after the project
currently being synced.

Examples:
  ffpull sync --all
  ffpull sync 0 3
  ffpull sync --all --branch main`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if cmd.Flags().Changed("branch") {
			cfg.Sync.Branch, _ = cmd.Flags().GetString("branch")
			if cfg.Sync.Branch == "" {
				fatalf("--branch must not be empty")
			}
		}
		if all == (len(args) > 0) {
			fatalf("give project indices or --all")
		}

		m := openManager()
		defer m.Close()

		var (
			seq   iter.Seq[engine.Progress]
			total int
			err   error
		)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if all {
			total = m.Store().Len()
			seq, err = m.SyncAll(ctx)
		} else {
			var indices []int
			indices, err = parseIndices(args, m.Store().Len())
			if err == nil {
				total = len(m.Select(indices...))
				seq, err = m.SyncProjects(ctx, indices...)
			}
		}
		if err != nil {
			m.Close()
			if errors.Is(err, manager.ErrSyncInProgress) {
				fatalf("%v (lock %s)", err, cfg.SyncLockPath())
			}
			fatalf("%v", err)
		}

		start := time.Now()
		live := ui.IsTerminal(os.Stdout)
		summary := engine.Summary{Total: total}
		var failed []engine.Progress
		for p := range seq {
			summary.Add(p)
			if !p.Outcome.OK() {
				failed = append(failed, p)
			}
			ui.PrintProgress(os.Stdout, p, live)
		}
		if live && summary.Completed > 0 && summary.Canceled() {
			fmt.Println()
		}

		printSummary(summary, failed, time.Since(start))
	},
}

func printSummary(s engine.Summary, failed []engine.Progress, took time.Duration) {
	if s.Total == 0 {
		fmt.Println("No projects to sync")
		return
	}
	if s.Canceled() {
		fmt.Println(ui.RenderWarn(fmt.Sprintf("Canceled after %d/%d projects", s.Completed, s.Total)))
	}
	fmt.Printf("%s updated, %s up to date, %s failed (%s)\n",
		ui.RenderPass(fmt.Sprint(s.Updated)),
		ui.RenderMuted(fmt.Sprint(s.UpToDate)),
		ui.RenderFail(fmt.Sprint(s.Failed)),
		took.Round(time.Millisecond))

	for _, p := range failed {
		line := fmt.Sprintf("  %s: %s", p.Record.Name, p.Outcome.Kind)
		if p.Outcome.Reason != "" {
			line += ": " + p.Outcome.Reason
		}
		fmt.Println(ui.RenderMuted(line))
	}
}

func init() {
	syncCmd.Flags().Bool("all", false, "Sync every registered project")
	syncCmd.Flags().String("branch", "", "Default branch for projects without an override")

	rootCmd.AddCommand(syncCmd)
}
