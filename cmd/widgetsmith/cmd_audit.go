package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"widgetsmith/internal/audit"
	"widgetsmith/internal/provider"
	"widgetsmith/internal/store"
)

var (
	auditLevel   string
	auditNoReuse bool
	auditRender  bool
	auditData    string
)

var auditCmd = &cobra.Command{
	Use:   "audit <artifact-id | widget-file.js>",
	Short: "Audit a widget for silent assumptions",
	Long: `audit runs an LLM review over widget code and reports concerns: decisions
the code made that the user never asked for. Repeat runs reuse prior
findings; only lines that changed since the last audit are re-examined.`,
	Args: cobra.ExactArgs(1),
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

		artifact, err := resolveTarget(artifacts, args[0])
		if err != nil {
			return err
		}

		records, err := audit.NewStore(cwd)
		if err != nil {
			return err
		}
		defer records.Close()

		collaborator, err := provider.New(effectiveModel())
		if err != nil {
			return err
		}

		dataInfo := ""
		if auditData != "" {
			ds, err := loadDataset(auditData)
			if err != nil {
				return err
			}
			dataInfo = ds.PromptInfo()
		}

		engine := audit.NewEngine(records, collaborator)
		result, err := engine.Run(cmd.Context(), audit.RunRequest{
			Artifact: artifact,
			Level:    auditLevel,
			Reuse:    !auditNoReuse,
			DataInfo: dataInfo,
		})
		if err != nil {
			return err
		}

		if result.ReusedVerbatim {
			fmt.Println(styleDim.Render("code unchanged; prior report reused"))
		} else if len(result.ChangedLines) > 0 {
			fmt.Println(styleDim.Render(fmt.Sprintf("incremental audit: %d changed line(s), %d concern(s) reused, %d fresh",
				len(result.ChangedLines), result.ReusedConcerns, result.FreshConcerns)))
		}

		markdown := renderRecord(artifact, result.Record)
		if auditRender {
			rendered, err := glamour.Render(markdown, "dark")
			if err == nil {
				fmt.Print(rendered)
				return nil
			}
		}
		fmt.Print(markdown)
		return nil
	},
}

// resolveTarget loads an artifact by ID, falling back to an external file
// path when the argument names a file on disk.
func resolveTarget(artifacts *store.ArtifactStore, target string) (*store.Artifact, error) {
	if stat, err := os.Stat(target); err == nil && !stat.IsDir() {
		return artifacts.LoadExternal(target)
	}
	artifact, err := artifacts.LoadByID(target)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, fmt.Errorf("artifact %s not found (and no such file)", target)
	}
	return artifact, nil
}

// renderRecord formats an audit record as markdown.
func renderRecord(artifact *store.Artifact, rec *audit.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Audit: %s\n\n", artifact.Slug)
	fmt.Fprintf(&b, "artifact `%s` · level **%s** · %d concern(s)\n\n", rec.ArtifactID, rec.Level, len(rec.Concerns))

	category := ""
	for _, c := range rec.Concerns {
		if c.Category() != category {
			category = c.Category()
			fmt.Fprintf(&b, "## %s\n\n", category)
		}
		loc := "global"
		if !c.IsGlobal() {
			loc = fmt.Sprintf("lines %s", joinLines(c.Location))
		}
		fmt.Fprintf(&b, "**%s** (%s, impact %s): %s\n\n", c.ID, loc, c.Impact, c.Summary)
		if c.Details != "" {
			fmt.Fprintf(&b, "%s\n\n", c.Details)
		}
		for _, alt := range c.Alternatives {
			fmt.Fprintf(&b, "- alternative: %s", alt.Option)
			if alt.WhenBetter != "" {
				fmt.Fprintf(&b, " (better when %s)", alt.WhenBetter)
			}
			b.WriteString("\n")
		}
		if len(c.Alternatives) > 0 {
			b.WriteString("\n")
		}
	}

	if len(rec.OpenQuestions) > 0 {
		b.WriteString("## Open questions\n\n")
		for _, q := range rec.OpenQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func joinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

func init() {
	auditCmd.Flags().StringVar(&auditLevel, "level", audit.LevelFast, "audit depth: fast or full")
	auditCmd.Flags().BoolVar(&auditNoReuse, "no-reuse", false, "ignore prior reports and audit from scratch")
	auditCmd.Flags().BoolVar(&auditRender, "render", false, "render the report with terminal styling")
	auditCmd.Flags().StringVar(&auditData, "data", "", "CSV dataset for audit context")
}
