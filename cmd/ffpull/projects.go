package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ffpull/ffpull/internal/project"
	"github.com/ffpull/ffpull/internal/ui"
	"github.com/ffpull/ffpull/internal/vcs"
)

var addCmd = &cobra.Command{
	Use:     "add [path] [name]",
	GroupID: "projects",
	Short:   "Register a local clone",
	Long: `Register a local clone of a git repository.

The path must be a git repository with an "origin" remote. The name defaults
to the directory name. Run without arguments on a terminal to fill in a form.

Examples:
  ffpull add ~/src/tool
  ffpull add ~/src/tool tool --notes "work fork" --branch main`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		notes, _ := cmd.Flags().GetString("notes")
		branch, _ := cmd.Flags().GetString("branch")

		var path, name string
		switch len(args) {
		case 0:
			if !ui.IsTerminal(os.Stdin) {
				fatalf("a project path is required")
			}
			if err := addForm(&path, &name, &notes); err != nil {
				fatalf("%v", err)
			}
		case 1:
			path = args[0]
		default:
			path, name = args[0], args[1]
		}

		if abs, err := filepath.Abs(path); err == nil && path != "" {
			path = abs
		}
		if name == "" && path != "" {
			name = filepath.Base(path)
		}

		m := openManager()
		defer m.Close()

		rec := project.Record{Path: path, Name: name, Notes: notes, Branch: branch}
		if err := m.RegisterRecord(rec); err != nil {
			m.Close()
			if errors.Is(err, project.ErrNotARepository) {
				if loc, derr := vcs.Detect(path); derr == nil && loc.Root != path {
					fatalf("%v\n(did you mean the repository root %s?)", err, loc.Root)
				}
			}
			fatalf("%v", err)
		}
		fmt.Printf("%s Registered %s\n", ui.RenderPass("✓"), rec)
	},
}

func addForm(path, name, notes *string) error {
	notEmpty := func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project path").
				Description("Local clone with an origin remote").
				Value(path).
				Validate(notEmpty),
			huh.NewInput().
				Title("Name").
				Value(name).
				Validate(notEmpty),
			huh.NewText().
				Title("Notes").
				Value(notes),
		),
	).Run()
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "projects",
	Short:   "List registered projects",
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		m := openManager()
		defer m.Close()

		records := m.ListProjects()
		if asJSON {
			data, err := project.Encode(records)
			if err != nil {
				fatalf("%v", err)
			}
			_, _ = os.Stdout.Write(data)
			return
		}

		if len(records) == 0 {
			fmt.Println("No projects registered")
			return
		}
		fmt.Println(ui.RenderHeader(fmt.Sprintf("%d projects", len(records))))
		for i, r := range records {
			line := fmt.Sprintf("%3d  %s  %s", i, ui.RenderAccent(r.Name), r.Path)
			if r.Branch != "" {
				line += ui.RenderMuted(" [" + r.Branch + "]")
			}
			fmt.Println(line)
			if r.Notes != "" {
				fmt.Println("     " + ui.RenderMuted(r.Notes))
			}
		}
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <index>...",
	GroupID: "projects",
	Short:   "Remove projects from the list",
	Long:    `Remove projects by index (see "ffpull list"). Clones on disk are not touched.`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		m := openManager()
		defer m.Close()

		indices, err := parseIndices(args, m.Store().Len())
		if err != nil {
			m.Close()
			fatalf("%v", err)
		}

		if !yes && ui.IsTerminal(os.Stdin) {
			var names []string
			for _, r := range m.Select(indices...) {
				names = append(names, r.Name)
			}
			confirmed := false
			err := huh.NewConfirm().
				Title("Remove " + strings.Join(names, ", ") + "?").
				Affirmative("Remove").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil || !confirmed {
				fmt.Println("Canceled")
				return
			}
		}

		removed := m.DeleteProjects(indices...)
		fmt.Printf("Removed %d project(s)\n", removed)
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <index>",
	GroupID: "projects",
	Short:   "Change a project's name, notes or branch",
	Long: `Change a registered project. Only the given flags are applied;
--branch "" clears a branch override.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			fatalf("invalid project index %q", args[0])
		}

		var patch project.Patch
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			patch.Name = &v
		}
		if cmd.Flags().Changed("notes") {
			v, _ := cmd.Flags().GetString("notes")
			patch.Notes = &v
		}
		if cmd.Flags().Changed("branch") {
			v, _ := cmd.Flags().GetString("branch")
			patch.Branch = &v
		}
		if patch.Empty() {
			fatalf("nothing to change (use --name, --notes or --branch)")
		}

		m := openManager()
		defer m.Close()

		if err := m.UpdateProject(index, patch); err != nil {
			m.Close()
			fatalf("%v", err)
		}
		rec, _ := m.Store().Get(index)
		fmt.Printf("%s Updated %s\n", ui.RenderPass("✓"), rec)
	},
}

func init() {
	addCmd.Flags().String("notes", "", "Free-form notes")
	addCmd.Flags().String("branch", "", "Branch to sync instead of the default")

	listCmd.Flags().Bool("json", false, "Print the list in the store's JSON format")

	rmCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	editCmd.Flags().String("name", "", "New display name")
	editCmd.Flags().String("notes", "", "New notes")
	editCmd.Flags().String("branch", "", "Branch override")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(editCmd)
}
