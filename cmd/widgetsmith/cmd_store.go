package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"widgetsmith/internal/audit"
	"widgetsmith/internal/store"
)

var (
	listLimit     int
	clearScope    string
	clearArtifact string
	showCode      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached widget artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		artifacts, err := store.NewArtifactStore(cwd)
		if err != nil {
			return err
		}
		defer artifacts.Close()

		all, err := artifacts.List(listLimit)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println(styleDim.Render("no artifacts"))
			return nil
		}

		for _, a := range all {
			line := fmt.Sprintf("%s  %s v%d", styleTitle.Render(a.ID), a.Slug, a.Version)
			if a.BaseArtifactID != "" {
				line += styleDim.Render("  (from " + a.BaseArtifactID + ")")
			}
			fmt.Println(line)
			fmt.Println(styleDim.Render(fmt.Sprintf("    %s · %d×%d · %s",
				truncate(a.SourceDescription, 60), a.DataShape.Rows, a.DataShape.Cols,
				a.CreatedAt.Format("2006-01-02 15:04"))))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <artifact-id>",
	Short: "Show one artifact's metadata and lineage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		artifacts, err := store.NewArtifactStore(cwd)
		if err != nil {
			return err
		}
		defer artifacts.Close()

		a, err := artifacts.LoadByID(args[0])
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("artifact %s not found", args[0])
		}

		fmt.Println(styleTitle.Render(a.ID) + "  " + a.Slug + fmt.Sprintf(" v%d", a.Version))
		fmt.Printf("  description: %s\n", a.SourceDescription)
		fmt.Printf("  data: %s (%d×%d)\n", a.DataVariableName, a.DataShape.Rows, a.DataShape.Cols)
		fmt.Printf("  hash: %s\n", a.ShortHash)
		fmt.Printf("  model: %s\n", orDash(a.ModelID))
		fmt.Printf("  file: %s\n", artifacts.WidgetPath(a.FileName))
		if a.BaseArtifactID != "" {
			fmt.Printf("  base: %s\n", a.BaseArtifactID)
		}
		if len(a.ComponentNames) > 0 {
			fmt.Printf("  components: %s\n", strings.Join(a.ComponentNames, ", "))
		}
		if showCode {
			fmt.Println()
			fmt.Println(a.Code)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached artifacts and/or audit history",
	Long: `clear removes cached state. Scope controls what goes:
  all        artifacts and audit records (default)
  artifacts  cached widgets only
  audits     audit history only
Use --artifact to clear a single artifact and its audit history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		if clearArtifact != "" {
			artifacts, err := store.NewArtifactStore(cwd)
			if err != nil {
				return err
			}
			defer artifacts.Close()
			records, err := audit.NewStore(cwd)
			if err != nil {
				return err
			}
			defer records.Close()

			if err := artifacts.ClearByID(clearArtifact); err != nil {
				return err
			}
			if err := records.ClearByArtifact(clearArtifact); err != nil {
				return err
			}
			fmt.Println(styleOK.Render("✓ ") + "cleared " + clearArtifact)
			return nil
		}

		switch clearScope {
		case "all", "artifacts":
			artifacts, err := store.NewArtifactStore(cwd)
			if err != nil {
				return err
			}
			err = artifacts.Clear()
			artifacts.Close()
			if err != nil {
				return err
			}
		}
		switch clearScope {
		case "all", "audits":
			records, err := audit.NewStore(cwd)
			if err != nil {
				return err
			}
			err = records.Clear()
			records.Close()
			if err != nil {
				return err
			}
		}
		if clearScope != "all" && clearScope != "artifacts" && clearScope != "audits" {
			return fmt.Errorf("unknown scope %q: expected all, artifacts, or audits", clearScope)
		}

		fmt.Println(styleOK.Render("✓ ") + "cleared " + clearScope)
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum artifacts to list (0 = all)")
	showCmd.Flags().BoolVar(&showCode, "code", false, "print the widget code")
	clearCmd.Flags().StringVar(&clearScope, "scope", "all", "what to clear: all, artifacts, audits")
	clearCmd.Flags().StringVar(&clearArtifact, "artifact", "", "clear a single artifact by ID")
}
