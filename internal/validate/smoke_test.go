package validate

import (
	"testing"
)

func TestSmokeCleanCode(t *testing.T) {
	result := Smoke(goodWidget)
	if !result.Success {
		t.Fatalf("expected success, got issues: %v", result.Issues)
	}
}

func TestSmokeIssues(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "unclosed brace",
			code: "export default function Widget({ model, html, React }) {\n  if (true) {\n}",
			want: "unclosed",
		},
		{
			name: "unmatched close",
			code: "export default function Widget({ model, html, React }) {}\n}",
			want: "unmatched",
		},
		{
			name: "mismatched brackets",
			code: "export default function Widget({ model, html, React }) { const a = [1, 2); }",
			want: "mismatched",
		},
		{
			name: "unterminated template",
			code: "export default function Widget({ model, html, React }) { return html`<div>; }",
			want: "unterminated template",
		},
		{
			name: "unterminated string",
			code: "export default function Widget({ model, html, React }) { const s = \"oops\n; }",
			want: "unterminated string",
		},
		{
			name: "duplicate default exports",
			code: "export default function A() {}\nexport default function B() {}",
			want: "default exports",
		},
		{
			name: "top-level await",
			code: "const data = await fetch(url);\nexport default function Widget({ model, html, React }) {}",
			want: "await",
		},
		{
			name: "empty",
			code: "",
			want: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Smoke(tt.code)
			if result.Success {
				t.Fatal("expected failure")
			}
			if !containsSubstring(result.Issues, tt.want) {
				t.Errorf("issues %v missing %q", result.Issues, tt.want)
			}
		})
	}
}

func TestSmokeIgnoresBracketsInLiterals(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"braces in string", `export default function W({ model, html, React }) { const s = "{[("; }`},
		{"braces in template", "export default function W({ model, html, React }) { return html`<div>{{</div>`; }"},
		{"braces in line comment", "export default function W({ model, html, React }) {} // {[("},
		{"braces in block comment", "export default function W({ model, html, React }) {} /* {[( */"},
		{"template interpolation", "export default function W({ model, html, React }) { return html`${x.map(d => d)}`; }"},
		{"escaped quote", `export default function W({ model, html, React }) { const s = "a\"b"; }`},
		{"parens in regex literal", `export default function W({ model, html, React }) { const t = label.replace(/\(/g, ""); }`},
		{"brackets in regex character class", "export default function W({ model, html, React }) { const parts = s.split(/[,;(]/).map(x => x); }"},
		{"slash in regex character class", "export default function W({ model, html, React }) { const re = /[/(]/; }"},
		{"division after operand", "export default function W({ model, html, React }) { const avg = (a + b) / (n || 1); }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Smoke(tt.code)
			if !result.Success {
				t.Errorf("false positive: %v", result.Issues)
			}
		})
	}
}

func TestSmokeAwaitInsideAsyncOK(t *testing.T) {
	code := "export default async function Widget({ model, html, React }) { const d = await load(); return html`<i></i>`; }"
	result := Smoke(code)
	if !result.Success {
		t.Errorf("await inside async flagged: %v", result.Issues)
	}
}
