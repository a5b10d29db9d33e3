package provider

import (
	"fmt"
	"sort"
	"strings"
)

const widgetSystemPrompt = `You are an expert front-end engineer writing AnyWidget-compatible ES modules.

Rules:
- Output a single ES module with exactly one default export:
  export default function Widget({ model, html, React }) { ... }
- Use html` + "``" + ` tagged templates (htm) for markup. htm is not JSX: use class=, not className=.
- Read data with model.get("name"); write exported state with model.set("name", value) followed by model.save_changes().
- Subscribe to imported state with model.on("change:name", handler).
- Never touch document.body and never call ReactDOM.render; return markup from the render function.
- Pin every CDN import to a version, e.g. https://esm.sh/d3@7.
- Output only code. No prose, no explanations.`

const auditSystemPrompt = `You are a careful reviewer of data visualization widget code.
You examine generated code for silent assumptions and decisions the user did not ask for.
You respond with a single JSON object and nothing else.`

// auditCategories are the concern taxonomy prefixes used in concern IDs.
var auditCategories = []string{"DATA", "COMPUTATION", "PRESENTATION", "INTERACTION"}

func buildGeneratePrompt(req GenerateRequest) string {
	var b strings.Builder

	b.WriteString("Create a widget:\n")
	b.WriteString(req.Description)
	b.WriteString("\n\n")
	b.WriteString(req.DataInfo)
	b.WriteString(buildContractSection(req.Exports, req.Imports))
	b.WriteString(buildCompositionSection(req.BaseCode, req.BaseComponents))
	if req.Theme != "" {
		fmt.Fprintf(&b, "\nVisual theme: %s\n", req.Theme)
	}
	b.WriteString("\nRespond with the complete widget module.\n")

	return b.String()
}

func buildRevisePrompt(req ReviseRequest) string {
	var b strings.Builder

	b.WriteString("Modify the widget below.\n\n")
	b.WriteString("Instruction:\n")
	b.WriteString(req.Instruction)
	b.WriteString("\n\nCurrent code:\n```javascript\n")
	b.WriteString(req.BaseCode)
	b.WriteString("\n```\n\n")
	b.WriteString(req.DataInfo)
	b.WriteString(buildContractSection(req.Exports, req.Imports))
	if req.Theme != "" {
		fmt.Fprintf(&b, "\nVisual theme: %s\n", req.Theme)
	}
	b.WriteString("\nKeep working behavior intact. Respond with the complete revised module.\n")

	return b.String()
}

func buildFixPrompt(req FixRequest) string {
	var b strings.Builder

	b.WriteString("The widget below fails. Fix it.\n\n")
	b.WriteString("Error:\n")
	b.WriteString(req.ErrorMessage)
	b.WriteString("\n\nCode:\n```javascript\n")
	b.WriteString(req.Code)
	b.WriteString("\n```\n")
	if req.DataInfo != "" {
		b.WriteString("\n")
		b.WriteString(req.DataInfo)
	}
	b.WriteString("\nChange only what is needed to fix the error. Respond with the complete fixed module.\n")

	return b.String()
}

// buildContractSection renders the declared exports and imports, sorted so
// prompts are deterministic for identical contracts.
func buildContractSection(exports, imports map[string]string) string {
	if len(exports) == 0 && len(imports) == 0 {
		return ""
	}
	var b strings.Builder

	if len(exports) > 0 {
		b.WriteString("\nExported state (write with model.set + model.save_changes):\n")
		for _, name := range sortedNames(exports) {
			fmt.Fprintf(&b, "  - %s: %s\n", name, exports[name])
		}
	}
	if len(imports) > 0 {
		b.WriteString("\nImported state (subscribe with model.on(\"change:<name>\")):\n")
		for _, name := range sortedNames(imports) {
			fmt.Fprintf(&b, "  - %s: %s\n", name, imports[name])
		}
	}
	return b.String()
}

// buildCompositionSection includes the base widget's code and component
// names when composing on top of an existing artifact.
func buildCompositionSection(baseCode string, components []string) string {
	if baseCode == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nBase widget to build upon:\n```javascript\n")
	b.WriteString(baseCode)
	b.WriteString("\n```\n")
	if len(components) > 0 {
		fmt.Fprintf(&b, "Reusable components from the base widget: %s\n", strings.Join(components, ", "))
	}
	return b.String()
}

func buildAuditPrompt(req AuditRequest) string {
	var b strings.Builder

	b.WriteString("Audit the widget code below for silent assumptions and unstated decisions.\n")
	fmt.Fprintf(&b, "Concern categories: %s.\n\n", strings.Join(auditCategories, ", "))

	if req.Description != "" {
		fmt.Fprintf(&b, "The user asked for: %s\n\n", req.Description)
	}
	if req.DataInfo != "" {
		b.WriteString(req.DataInfo)
		b.WriteString("\n")
	}

	b.WriteString("Code (line numbers are 1-based):\n```javascript\n")
	b.WriteString(numberLines(req.Code))
	b.WriteString("\n```\n\n")

	if len(req.ChangedLines) > 0 {
		fmt.Fprintf(&b, "Only lines %s changed since the last audit. Report concerns only for decisions those lines introduce or alter.\n\n", joinInts(req.ChangedLines))
	}

	if req.Level == "full" {
		b.WriteString(fullAuditSchema)
	} else {
		b.WriteString(fastAuditSchema)
	}

	return b.String()
}

const fastAuditSchema = `Respond with JSON matching exactly this shape:
{
  "fast_audit": {
    "concerns": [
      {
        "id": "DATA.1",
        "location": "global" or [line numbers],
        "summary": "one sentence",
        "details": "what the code does and what was assumed",
        "technical_summary": "precise technical statement",
        "impact": "high" | "medium" | "low",
        "default": true if this is a reasonable default choice
      }
    ],
    "open_questions": ["question the user should answer", ...]
  }
}
Concern IDs are category-prefixed and numbered (DATA.1, PRESENTATION.2, ...).`

const fullAuditSchema = `Respond with JSON matching exactly this shape:
{
  "full_audit": {
    "concerns": [
      {
        "id": "DATA.1",
        "location": "global" or [line numbers],
        "summary": "one sentence",
        "details": "what the code does and what was assumed",
        "technical_summary": "precise technical statement",
        "impact": "high" | "medium" | "low",
        "default": true if this is a reasonable default choice,
        "rationale": "why the code likely made this choice",
        "alternatives": [
          {
            "option": "alternative approach",
            "when_better": "when to prefer it",
            "when_worse": "when the current choice is better"
          }
        ]
      }
    ],
    "open_questions": ["question the user should answer", ...]
  }
}
Examine each concern through these lenses: uncertainty, reproducibility,
edge behavior, default-vs-explicit, appropriateness, safety.
Concern IDs are category-prefixed and numbered (DATA.1, PRESENTATION.2, ...).`

func numberLines(code string) string {
	lines := strings.Split(code, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%4d| %s\n", i+1, line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
