package main

import (
	"strings"

	"github.com/spf13/cobra"

	"widgetsmith/internal/dataset"
	"widgetsmith/internal/orchestrator"
)

var (
	revData    string
	revExports []string
	revImports []string
	revStream  bool
)

var reviseCmd = &cobra.Command{
	Use:   "revise <artifact-id> <instruction>",
	Short: "Revise an existing widget into a new linked version",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artifactID := args[0]
		instruction := strings.Join(args[1:], " ")

		var ds *dataset.Dataset
		if revData != "" {
			var err error
			ds, err = loadDataset(revData)
			if err != nil {
				return err
			}
		}
		exports, err := parseDecls(revExports)
		if err != nil {
			return err
		}
		imports, err := parseDecls(revImports)
		if err != nil {
			return err
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		out, err := p.orchestrator.Revise(cmd.Context(), orchestrator.ReviseRequest{
			BaseArtifactID: artifactID,
			Instruction:    instruction,
			Dataset:        ds,
			Exports:        exports,
			Imports:        imports,
			Theme:          effectiveTheme(),
			OnEvent:        progressPrinter(revStream),
		})
		if err != nil {
			return err
		}
		printOutcome(out)
		return nil
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix <artifact-id> <error-message>",
	Short: "Repair a widget that failed at runtime",
	Long: `fix takes the runtime error a host observed while running a widget and
produces a repaired version linked to the original.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artifactID := args[0]
		errorMessage := strings.Join(args[1:], " ")

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		out, err := p.orchestrator.FixRuntimeError(cmd.Context(), artifactID, errorMessage, progressPrinter(false))
		if err != nil {
			return err
		}
		printOutcome(out)
		return nil
	},
}

func init() {
	reviseCmd.Flags().StringVar(&revData, "data", "", "CSV dataset, if it changed since the base version")
	reviseCmd.Flags().StringArrayVar(&revExports, "export", nil, "exported state as name=description (repeatable)")
	reviseCmd.Flags().StringArrayVar(&revImports, "import", nil, "imported state as name=description (repeatable)")
	reviseCmd.Flags().BoolVar(&revStream, "stream", false, "echo LLM output as it arrives")
}
