package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ffpull/ffpull/internal/config"
	"github.com/ffpull/ffpull/internal/logging"
	"github.com/ffpull/ffpull/internal/manager"
	"github.com/ffpull/ffpull/internal/ui"
)

var (
	configFile string
	verbose    bool

	cfg  *config.Config
	logs *logging.Logging
)

var rootCmd = &cobra.Command{
	Use:   "ffpull",
	Short: "Keep local clones up to date with fast-forward-only pulls",
	Long: `ffpull keeps a list of local git clones and brings them up to date with
their origin remote. A project is only moved when its branch can be
fast-forwarded; diverged branches are reported and left alone.

The project list is stored as JSON; settings come from
$XDG_CONFIG_HOME/ffpull/config.{yaml,toml,json} and FFPULL_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Verbose = true
		}

		logs, err = logging.Open(logging.FromConfig(cfg.Log))
		if err != nil {
			// The process log is optional; keep going without it.
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			logs = logging.Discard()
		}

		ui.Init()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/ffpull/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Copy the process log to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "projects", Title: "Projects:"},
		&cobra.Group{ID: "sync", Title: "Syncing:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openManager opens the project store and history configured in cfg.
func openManager() *manager.Manager {
	m, err := manager.New(manager.OptionsFromConfig(cfg, logs))
	if err != nil {
		fatalf("%v", err)
	}
	return m
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// parseIndices converts project index arguments, rejecting anything that
// is not an index into a list of n projects.
func parseIndices(args []string, n int) ([]int, error) {
	indices := make([]int, 0, len(args))
	for _, arg := range args {
		i, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid project index %q", arg)
		}
		if i < 0 || i >= n {
			return nil, fmt.Errorf("project index %d out of range (%d projects)", i, n)
		}
		indices = append(indices, i)
	}
	return indices, nil
}
