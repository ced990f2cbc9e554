package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.File != "" {
			fmt.Printf("# loaded from %s\n", cfg.File)
		} else {
			fmt.Println("# no config file; defaults and environment only")
		}
		if err := toml.NewEncoder(os.Stdout).Encode(cfg.Settings()); err != nil {
			fatalf("%v", err)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
