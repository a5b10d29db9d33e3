package main

import (
	"fmt"
	"os"
	"strings"

	"widgetsmith/internal/config"
	"widgetsmith/internal/dataset"
	"widgetsmith/internal/orchestrator"
	"widgetsmith/internal/provider"
	"widgetsmith/internal/store"
)

// pipeline bundles the stores and orchestrator a generation command needs.
type pipeline struct {
	artifacts    *store.ArtifactStore
	orchestrator *orchestrator.Orchestrator
	model        string
}

func newPipeline() (*pipeline, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	artifacts, err := store.NewArtifactStore(cwd)
	if err != nil {
		return nil, err
	}

	model := effectiveModel()
	collaborator, err := provider.New(model)
	if err != nil {
		artifacts.Close()
		return nil, err
	}

	cfg, _ := config.Load()
	return &pipeline{
		artifacts: artifacts,
		orchestrator: orchestrator.New(artifacts, collaborator,
			orchestrator.WithMaxRepairAttempts(cfg.MaxRepairAttempts)),
		model: model,
	}, nil
}

func (p *pipeline) Close() {
	p.artifacts.Close()
}

// loadDataset reads the --data CSV into a Dataset.
func loadDataset(path string) (*dataset.Dataset, error) {
	if path == "" {
		return nil, fmt.Errorf("--data is required")
	}
	cfg, _ := config.Load()
	return dataset.LoadCSV(path, cfg.SampleRows)
}

// parseDecls parses repeated "name=description" flags into a contract map.
func parseDecls(decls []string) (map[string]string, error) {
	if len(decls) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(decls))
	for _, d := range decls {
		name, desc, found := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("bad declaration %q: expected name=description", d)
		}
		m[name] = strings.TrimSpace(desc)
	}
	return m, nil
}

// progressPrinter renders pipeline events to the terminal. Chunks are
// echoed only when stream is set.
func progressPrinter(stream bool) orchestrator.EventFunc {
	return func(e orchestrator.Event) {
		switch e.Type {
		case orchestrator.EventStep:
			fmt.Println(styleDim.Render("» ") + e.Message)
		case orchestrator.EventChunk:
			if stream {
				fmt.Fprint(os.Stderr, e.Chunk)
			}
		case orchestrator.EventComplete:
			if stream {
				fmt.Fprintln(os.Stderr)
			}
			fmt.Println(styleOK.Render("✓ ") + e.Message)
		case orchestrator.EventError:
			fmt.Println(styleErr.Render("✗ ") + e.Err.Error())
		}
	}
}

// printOutcome reports acceptance state and any outstanding issues.
func printOutcome(out *orchestrator.Outcome) {
	if out.CacheHit {
		fmt.Println(styleDim.Render(fmt.Sprintf("  cached artifact %s", out.Artifact.ID)))
		return
	}
	if !out.Clean {
		fmt.Println(styleWarn.Render(fmt.Sprintf("  accepted with %d unresolved issue(s) after %d repair attempt(s):", len(out.Issues), out.RepairAttempts)))
		for _, issue := range out.Issues {
			fmt.Println(styleWarn.Render("    - " + issue))
		}
	}
	for _, w := range out.Warnings {
		fmt.Println(styleDim.Render("    warning: " + w))
	}
	fmt.Printf("  artifact: %s\n  file: %s\n", out.Artifact.ID, out.Artifact.FileName)
}
