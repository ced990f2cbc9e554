package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ffpull/ffpull/internal/project"
	"github.com/ffpull/ffpull/internal/ui"
)

// tomlDocument wraps the list because a TOML document must be a table.
type tomlDocument struct {
	Projects []project.Record `toml:"projects"`
}

func encodeRecords(records []project.Record, format string) ([]byte, error) {
	switch format {
	case "json":
		return project.Encode(records)
	case "yaml", "yml":
		if records == nil {
			records = []project.Record{}
		}
		return yaml.Marshal(records)
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tomlDocument{Projects: records}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown format %q (want json, yaml or toml)", format)
}

func decodeRecords(data []byte, format string) ([]project.Record, error) {
	switch format {
	case "json":
		return project.Decode(data)
	case "yaml", "yml":
		var records []project.Record
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return records, nil
	case "toml":
		var doc tomlDocument
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		return doc.Projects, nil
	}
	return nil, fmt.Errorf("unknown format %q (want json, yaml or toml)", format)
}

// formatFor picks the explicit format, else the file extension, else JSON.
func formatFor(flag, path string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	return "json"
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "projects",
	Short:   "Write the project list as JSON, YAML or TOML",
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		m := openManager()
		defer m.Close()

		data, err := encodeRecords(m.ListProjects(), formatFor(format, output))
		if err != nil {
			m.Close()
			fatalf("%v", err)
		}

		if output == "" {
			_, _ = os.Stdout.Write(data)
			return
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			m.Close()
			fatalf("failed to write %s: %v", output, err)
		}
		fmt.Printf("Exported %d project(s) to %s\n", m.Store().Len(), output)
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "projects",
	Short:   "Register every project listed in a file",
	Long: `Register the projects listed in a JSON, YAML or TOML file. Each entry is
validated like "ffpull add"; rejected entries are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		data, err := os.ReadFile(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		records, err := decodeRecords(data, formatFor(format, args[0]))
		if err != nil {
			fatalf("%v", err)
		}

		m := openManager()
		defer m.Close()

		added := 0
		for _, r := range records {
			if err := m.RegisterRecord(r); err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
				continue
			}
			added++
		}
		fmt.Printf("Imported %d of %d project(s)\n", added, len(records))
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "json, yaml or toml (default from --output extension, else json)")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	importCmd.Flags().StringP("format", "f", "", "json, yaml or toml (default from the file extension)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
