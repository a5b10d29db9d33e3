package store

import (
	"strings"
	"testing"
)

func TestCacheKeyDeterministic(t *testing.T) {
	in := KeyInputs{
		Description:      "bar chart of sales by region",
		DataVariableName: "sales",
		DataShape:        DataShape{Rows: 120, Cols: 3},
		Contract: Contract{
			Exports: map[string]string{"selection": "selected region"},
			Imports: map[string]string{"year": "year filter"},
		},
		Theme: "dark",
	}

	k1 := CacheKey(in)
	k2 := CacheKey(in)
	if k1 != k2 {
		t.Errorf("same inputs produced different keys: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(k1))
	}
}

func TestCacheKeyNormalizesDescription(t *testing.T) {
	a := CacheKey(KeyInputs{Description: "Bar chart   of sales"})
	b := CacheKey(KeyInputs{Description: "  bar CHART of\tsales "})
	if a != b {
		t.Error("whitespace/case variants of the description should share a key")
	}
}

func TestCacheKeySensitiveToSemanticInputs(t *testing.T) {
	base := KeyInputs{
		Description:      "bar chart of sales",
		DataVariableName: "sales",
		DataShape:        DataShape{Rows: 10, Cols: 2},
	}

	tests := []struct {
		name   string
		mutate func(KeyInputs) KeyInputs
	}{
		{"description", func(in KeyInputs) KeyInputs { in.Description = "line chart of sales"; return in }},
		{"data variable", func(in KeyInputs) KeyInputs { in.DataVariableName = "revenue"; return in }},
		{"shape", func(in KeyInputs) KeyInputs { in.DataShape.Rows = 11; return in }},
		{"exports", func(in KeyInputs) KeyInputs {
			in.Contract.Exports = map[string]string{"selection": "x"}
			return in
		}},
		{"imports", func(in KeyInputs) KeyInputs {
			in.Contract.Imports = map[string]string{"filter": "y"}
			return in
		}},
		{"theme", func(in KeyInputs) KeyInputs { in.Theme = "dark"; return in }},
	}

	baseKey := CacheKey(base)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if CacheKey(tt.mutate(base)) == baseKey {
				t.Errorf("changing %s did not change the key", tt.name)
			}
		})
	}
}

func TestContractSignature(t *testing.T) {
	if sig := ContractSignature(nil); sig != "" {
		t.Errorf("nil contract should have empty signature, got %q", sig)
	}
	if sig := ContractSignature(map[string]string{}); sig != "" {
		t.Errorf("empty contract should have empty signature, got %q", sig)
	}

	a := ContractSignature(map[string]string{"x": "one", "y": "two"})
	b := ContractSignature(map[string]string{"y": "two", "x": "one"})
	if a != b {
		t.Error("signature must not depend on map iteration order")
	}
	if len(a) != 12 {
		t.Errorf("expected 12 hex chars, got %d", len(a))
	}

	c := ContractSignature(map[string]string{"x": "one", "y": "changed"})
	if a == c {
		t.Error("changing a description should change the signature")
	}
}

func TestThemeSignature(t *testing.T) {
	if sig := ThemeSignature(""); sig != "" {
		t.Errorf("empty theme should have empty signature, got %q", sig)
	}
	if ThemeSignature("Dark  mode") != ThemeSignature("dark mode") {
		t.Error("theme signature should normalize whitespace and case")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name        string
		description string
		dataVar     string
		want        string
	}{
		{"data var already mentioned", "bar chart of sales by region", "sales", "bar_chart_sales_region"},
		{"data var appended", "bar chart by region", "sales", "bar_chart_region_sales"},
		{"stop words dropped", "show me a bar chart", "data", "bar_chart_data"},
		{"empty falls back", "", "", "widget"},
		{"only stop words", "show me a the of", "", "widget"},
		{"punctuation stripped", "sales, by-region!", "d", "sales_byregion_d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slug(tt.description, tt.dataVar)
			if got != tt.want {
				t.Errorf("Slug(%q, %q) = %q, want %q", tt.description, tt.dataVar, got, tt.want)
			}
		})
	}
}

func TestSlugLengthCap(t *testing.T) {
	long := strings.Repeat("seriously ", 20) + "long description"
	slug := Slug(long, "dataset")
	if len(slug) > 40 {
		t.Errorf("slug exceeds 40 chars: %q (%d)", slug, len(slug))
	}
	if strings.HasPrefix(slug, "_") || strings.HasSuffix(slug, "_") {
		t.Errorf("slug has dangling underscore: %q", slug)
	}
}

func TestFileNameFor(t *testing.T) {
	got := FileNameFor("bar_chart", "abc123def0", 2)
	want := "bar_chart__abc123def0__v2.js"
	if got != want {
		t.Errorf("FileNameFor = %q, want %q", got, want)
	}
}

func TestExtractComponentNames(t *testing.T) {
	code := `
export default function Widget({ model, html, React }) {}
export function BarChart(props) {}
export const Legend = () => {};
export class AxisHelper {}
export function helper() {}
export const BarChart2 = 1;
`
	got := ExtractComponentNames(code)
	want := []string{"AxisHelper", "BarChart", "BarChart2", "Legend", "Widget"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("component %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
