// widgetsmith generates, caches, revises, and audits data-visualization
// widgets from natural-language descriptions.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"widgetsmith/internal/config"
	"widgetsmith/internal/logging"
)

var (
	flagModel string
	flagTheme string

	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleErr   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleDim   = lipgloss.NewStyle().Faint(true)
)

var rootCmd = &cobra.Command{
	Use:   "widgetsmith",
	Short: "Generate, cache, and audit data-visualization widgets",
	Long: `widgetsmith turns a description plus a tabular dataset into widget code,
caches results content-addressably, and audits generated code for silent
assumptions - re-examining only the lines that changed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := logging.Initialize(cwd); err != nil {
			fmt.Fprintf(os.Stderr, "warning: logging unavailable: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model ID or provider shortcut (anthropic, google)")
	rootCmd.PersistentFlags().StringVar(&flagTheme, "theme", "", "visual theme for generated widgets")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(reviseCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(clearCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleErr.Render("error: ")+err.Error())
		logging.CloseAll()
		os.Exit(1)
	}
}

// effectiveModel resolves the model flag against the saved config.
func effectiveModel() string {
	if flagModel != "" {
		return config.ResolveModel(flagModel)
	}
	cfg, _ := config.Load()
	return config.ResolveModel(cfg.Model)
}

// effectiveTheme resolves the theme flag against the saved config.
func effectiveTheme() string {
	if flagTheme != "" {
		return flagTheme
	}
	cfg, _ := config.Load()
	return cfg.Theme
}
