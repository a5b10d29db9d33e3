package validate

import (
	"strings"
	"testing"
)

const goodWidget = `
import * as d3 from "https://esm.sh/d3@7";

export default function Widget({ model, html, React }) {
  const data = model.get("sales");
  model.on("change:year", () => {});
  const select = (id) => {
    model.set("selection", id);
    model.save_changes();
  };
  return html` + "`<div class=\"chart\"></div>`" + `;
}
`

func TestValidateCleanWidget(t *testing.T) {
	result := Validate(goodWidget,
		map[string]string{"selection": "selected ids"},
		map[string]string{"year": "year filter"})

	if !result.Valid {
		t.Fatalf("expected valid, got issues: %v", result.Issues)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestValidateIssues(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		exports map[string]string
		want    string // substring expected among issues
	}{
		{
			name: "missing default export",
			code: "function Widget({ model, html, React }) {}",
			want: "export default function",
		},
		{
			name: "missing render params",
			code: "export default function Widget({ model }) { return html`<div></div>`; }",
			want: "'html'",
		},
		{
			name:    "export never set",
			code:    "export default function Widget({ model, html, React }) { model.save_changes(); return html`<i></i>`; }",
			exports: map[string]string{"selection": "ids"},
			want:    "export 'selection' is never written",
		},
		{
			name:    "save_changes never called",
			code:    `export default function Widget({ model, html, React }) { model.set("selection", 1); return html` + "`<i></i>`" + `; }`,
			exports: map[string]string{"selection": "ids"},
			want:    "model.save_changes()",
		},
		{
			name: "document.body",
			code: "export default function Widget({ model, html, React }) { document.body.innerHTML = \"\"; return html`<i></i>`; }",
			want: "document.body",
		},
		{
			name: "ReactDOM.render",
			code: "export default function Widget({ model, html, React }) { ReactDOM.render(null, null); return html`<i></i>`; }",
			want: "ReactDOM.render",
		},
		{
			name: "empty code",
			code: "   ",
			want: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.code, tt.exports, nil)
			if result.Valid {
				t.Fatalf("expected invalid, got valid (warnings: %v)", result.Warnings)
			}
			if !containsSubstring(result.Issues, tt.want) {
				t.Errorf("issues %v missing %q", result.Issues, tt.want)
			}
		})
	}
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		imports map[string]string
		want    string
	}{
		{
			name: "no html template",
			code: `export default function Widget({ model, html, React }) { return null; }`,
			want: "html``",
		},
		{
			name:    "unsubscribed import",
			code:    goodWidget,
			imports: map[string]string{"filter": "region filter"},
			want:    "import 'filter'",
		},
		{
			name: "className in htm",
			code: "export default function Widget({ model, html, React }) { return html`<div className=${x}></div>`; }",
			want: "className=",
		},
		{
			name: "unpinned CDN import",
			code: "import * as d3 from \"https://esm.sh/d3\";\nexport default function Widget({ model, html, React }) { return html`<i></i>`; }",
			want: "unpinned CDN import",
		},
		{
			name: "unpinned scoped CDN import",
			code: "import * as Plot from \"https://esm.sh/@observablehq/plot\";\nexport default function Widget({ model, html, React }) { return html`<i></i>`; }",
			want: "unpinned CDN import",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.code, nil, tt.imports)
			if !result.Valid {
				t.Fatalf("warnings must not invalidate; issues: %v", result.Issues)
			}
			if !containsSubstring(result.Warnings, tt.want) {
				t.Errorf("warnings %v missing %q", result.Warnings, tt.want)
			}
		})
	}
}

func TestValidatePinnedScopedImportOK(t *testing.T) {
	code := "import * as Plot from \"https://esm.sh/@observablehq/plot@0.6\";\nexport default function Widget({ model, html, React }) { return html`<i></i>`; }"
	result := Validate(code, nil, nil)
	if containsSubstring(result.Warnings, "unpinned") {
		t.Errorf("pinned scoped import flagged: %v", result.Warnings)
	}
}

func TestValidateCapitalizedExportsSkipped(t *testing.T) {
	// Component exports are not model state; no model.set required
	code := `export default function Widget({ model, html, React }) { return html` + "`<i></i>`" + `; }
export function BarChart(props) {}`
	result := Validate(code, map[string]string{"BarChart": "bar chart component"}, nil)
	if !result.Valid {
		t.Errorf("capitalized export should not require model.set: %v", result.Issues)
	}
}

func containsSubstring(items []string, want string) bool {
	for _, item := range items {
		if strings.Contains(item, want) {
			return true
		}
	}
	return false
}
