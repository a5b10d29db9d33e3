package main

import (
	"strings"

	"github.com/spf13/cobra"

	"widgetsmith/internal/orchestrator"
)

var (
	genData    string
	genExports []string
	genImports []string
	genBase    string
	genForce   bool
	genStream  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Generate a widget from a description and a dataset",
	Example: `  widgetsmith generate "bar chart of sales by region" --data sales.csv
  widgetsmith generate "scatter plot" --data iris.csv --export selection="selected point ids"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description := strings.Join(args, " ")

		ds, err := loadDataset(genData)
		if err != nil {
			return err
		}
		exports, err := parseDecls(genExports)
		if err != nil {
			return err
		}
		imports, err := parseDecls(genImports)
		if err != nil {
			return err
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		out, err := p.orchestrator.Generate(cmd.Context(), orchestrator.GenerateRequest{
			Description:    description,
			Dataset:        ds,
			Exports:        exports,
			Imports:        imports,
			Theme:          effectiveTheme(),
			BaseArtifactID: genBase,
			Force:          genForce,
			OnEvent:        progressPrinter(genStream),
		})
		if err != nil {
			return err
		}
		printOutcome(out)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&genData, "data", "", "CSV dataset the widget renders (required)")
	generateCmd.Flags().StringArrayVar(&genExports, "export", nil, "exported state as name=description (repeatable)")
	generateCmd.Flags().StringArrayVar(&genImports, "import", nil, "imported state as name=description (repeatable)")
	generateCmd.Flags().StringVar(&genBase, "base", "", "artifact ID to compose on top of")
	generateCmd.Flags().BoolVar(&genForce, "force", false, "skip the cache and regenerate")
	generateCmd.Flags().BoolVar(&genStream, "stream", false, "echo LLM output as it arrives")
}
