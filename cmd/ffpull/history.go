package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/ffpull/ffpull/internal/history"
	"github.com/ffpull/ffpull/internal/logging"
	"github.com/ffpull/ffpull/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "sync",
	Short:   "Show past sync results",
	Long: `Show per-project results of past syncs, newest first.

--since accepts a timestamp (2024-05-01, 2024-05-01T10:00:00Z), a duration
(36h) or a phrase such as "yesterday" or "last monday".

Examples:
  ffpull history --since yesterday
  ffpull history --project tool --limit 5
  ffpull history --runs`,
	Run: func(cmd *cobra.Command, args []string) {
		since, _ := cmd.Flags().GetString("since")
		projectName, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")
		runs, _ := cmd.Flags().GetBool("runs")

		if !cfg.History.Enabled {
			fatalf("sync history is disabled (history.enabled = false)")
		}

		filter := history.Filter{Project: projectName, Limit: limit}
		if since != "" {
			t, err := parseSince(since, time.Now())
			if err != nil {
				fatalf("%v", err)
			}
			filter.Since = t
		}

		db, err := history.Open(cfg.History.Path)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		ctx := context.Background()
		if runs {
			list, err := db.Runs(ctx, limit)
			if err != nil {
				db.Close()
				fatalf("%v", err)
			}
			printRuns(list)
			return
		}

		entries, err := db.Query(ctx, filter)
		if err != nil {
			db.Close()
			fatalf("%v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No sync results")
			return
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-20s %s", e.RecordedAt.Local().Format("2006-01-02 15:04:05"), e.Project, ui.RenderOutcome(e.Outcome))
			if e.Outcome.Reason != "" {
				line += ui.RenderMuted(": " + e.Outcome.Reason)
			}
			fmt.Println(line)
		}
	},
}

func printRuns(runs []history.Run) {
	if len(runs) == 0 {
		fmt.Println("No sync runs")
		return
	}
	for _, r := range runs {
		status := fmt.Sprintf("%d/%d", r.Completed, r.Total)
		switch {
		case r.FinishedAt == nil:
			status += ui.RenderWarn(" unfinished")
		case r.Canceled:
			status += ui.RenderWarn(" canceled")
		}
		fmt.Printf("#%-4d %s  %s  %s updated, %s failed\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), status,
			ui.RenderPass(fmt.Sprint(r.Updated)), ui.RenderFail(fmt.Sprint(r.Failed)))
	}
}

// parseSince accepts an absolute time, a Go duration counted back from now,
// or an English phrase.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a time", s)
	}
	return r.Time, nil
}

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: "advanced",
	Short:   "Show the end of the process log",
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("lines")

		lines, err := logging.Tail(cfg.Log.File, n)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("No log at %s yet\n", cfg.Log.File)
			return
		}
		if err != nil {
			fatalf("%v", err)
		}
		for _, line := range lines {
			fmt.Println(colorLogLine(line))
		}
	},
}

// colorLogLine colors a process log line; the severity follows the
// component prefix and timestamp.
func colorLogLine(line string) string {
	switch {
	case strings.Contains(line, "[ERROR]"), strings.Contains(line, "ERROR:"):
		return ui.RenderFail(line)
	case strings.Contains(line, "[WARN]"), strings.Contains(line, "WARN:"):
		return ui.RenderWarn(line)
	}
	return line
}

func init() {
	historyCmd.Flags().String("since", "", "Only show results after this time")
	historyCmd.Flags().String("project", "", "Only show results for this project name")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of rows (0 for all)")
	historyCmd.Flags().Bool("runs", false, "List batches instead of per-project results")

	logCmd.Flags().IntP("lines", "n", 50, "Number of lines to show")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
}
