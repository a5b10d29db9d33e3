// Package validate performs structural validation of generated widget code.
// Validation is pure: no network, no LLM, no DOM. It checks the AnyWidget
// render contract (export default function receiving model/html/React),
// model synchronization for declared exports and imports, and a small set
// of patterns known to break embedding hosts.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"widgetsmith/internal/logging"
)

// ValidationResult is the outcome of a structural validation pass.
// Valid is true iff Issues is empty; warnings never block.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

var (
	defaultExportRe = regexp.MustCompile(`export\s+default\s+(?:async\s+)?function`)
	renderParamsRe  = regexp.MustCompile(`export\s+default\s+(?:async\s+)?function\s*\w*\s*\(\s*\{([^}]*)\}`)
	cdnImportRe     = regexp.MustCompile(`from\s+["'](https://esm\.sh/[^"']+)["']`)
	upperFirstRe    = regexp.MustCompile(`^[A-Z]`)
)

// Validate checks widget code against the render contract and the declared
// exports/imports. exports and imports map state names to descriptions;
// either may be nil.
func Validate(code string, exports, imports map[string]string) ValidationResult {
	result := ValidationResult{Valid: true}

	if strings.TrimSpace(code) == "" {
		result.Issues = append(result.Issues, "code is empty")
		result.Valid = false
		return result
	}

	// Render contract: default export function taking {model, html, React}
	if !defaultExportRe.MatchString(code) {
		result.Issues = append(result.Issues, "missing 'export default function' declaration")
	} else if m := renderParamsRe.FindStringSubmatch(code); m != nil {
		params := m[1]
		for _, want := range []string{"model", "html", "React"} {
			if !containsParam(params, want) {
				result.Issues = append(result.Issues, fmt.Sprintf("render function must destructure '%s' from its argument", want))
			}
		}
	}

	if !strings.Contains(code, "html`") {
		result.Warnings = append(result.Warnings, "no html`` template found; widget may not render")
	}

	// Declared exports must be written back to the model. Capitalized names
	// are component exports, not model state; skip them.
	savesChanges := strings.Contains(code, "model.save_changes()")
	for _, name := range sortedKeys(exports) {
		if upperFirstRe.MatchString(name) {
			continue
		}
		if !strings.Contains(code, fmt.Sprintf("model.set(%q", name)) &&
			!strings.Contains(code, fmt.Sprintf("model.set('%s'", name)) {
			result.Issues = append(result.Issues, fmt.Sprintf("export '%s' is never written: expected model.set(\"%s\", ...)", name, name))
		}
	}
	if countStateExports(exports) > 0 && !savesChanges {
		result.Issues = append(result.Issues, "exports declared but model.save_changes() is never called")
	}

	// Declared imports should be subscribed to. Missing subscription means
	// the widget goes stale silently, so this is a warning, not an issue.
	for _, name := range sortedKeys(imports) {
		if !strings.Contains(code, fmt.Sprintf(`model.on("change:%s"`, name)) &&
			!strings.Contains(code, fmt.Sprintf(`model.on('change:%s'`, name)) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("import '%s' has no model.on(\"change:%s\") subscription", name, name))
		}
	}

	// Patterns that break embedding hosts
	if strings.Contains(code, "document.body") {
		result.Issues = append(result.Issues, "direct document.body access; render into the provided element instead")
	}
	if strings.Contains(code, "ReactDOM.render") {
		result.Issues = append(result.Issues, "ReactDOM.render is not available; return html`` from the render function")
	}
	if strings.Contains(code, "className=") && strings.Contains(code, "html`") {
		result.Warnings = append(result.Warnings, "className= inside html`` templates; use class= (htm is not JSX)")
	}

	// Unpinned CDN imports break cache reproducibility
	for _, m := range cdnImportRe.FindAllStringSubmatch(code, -1) {
		url := m[1]
		if !pinnedCDNImport(url) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unpinned CDN import %s; pin a version with @", url))
		}
	}

	result.Valid = len(result.Issues) == 0
	logging.ValidationDebug("validate: valid=%v issues=%d warnings=%d", result.Valid, len(result.Issues), len(result.Warnings))
	return result
}

// containsParam reports whether a destructuring parameter list names ident.
func containsParam(params, ident string) bool {
	for _, p := range strings.Split(params, ",") {
		p = strings.TrimSpace(p)
		// Tolerate renames ("model: m") and defaults ("React = window.React")
		if i := strings.IndexAny(p, ":="); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		if p == ident {
			return true
		}
	}
	return false
}

// pinnedCDNImport reports whether an esm.sh URL pins a package version.
// The @ must appear in the path, not just in a scope prefix like @observablehq.
func pinnedCDNImport(url string) bool {
	path := strings.TrimPrefix(url, "https://esm.sh/")
	if strings.HasPrefix(path, "@") {
		// Scoped package: version pin is a second @
		return strings.Count(path, "@") >= 2
	}
	return strings.Contains(path, "@")
}

func countStateExports(exports map[string]string) int {
	n := 0
	for name := range exports {
		if !upperFirstRe.MatchString(name) {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
