// Package dataset describes the tabular data a widget renders.
// A Dataset carries column names, coarse dtypes, shape, and a small sample
// of rows for prompt construction. Nothing here touches the LLM.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column is one column of a tabular dataset with a coarse inferred type.
type Column struct {
	Name  string `json:"name"`
	DType string `json:"dtype"` // int64, float64, bool, datetime, object
}

// Shape is the row/column count of a dataset.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Dataset holds everything the generation pipeline needs to know about
// the data variable without shipping the full data.
type Dataset struct {
	VariableName string
	Columns      []Column
	Shape        Shape
	Sample       []map[string]string // first few rows as raw strings
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// TemporalColumns returns columns that look like dates or times, either by
// dtype or by name.
func (d *Dataset) TemporalColumns() []string {
	var cols []string
	for _, c := range d.Columns {
		lower := strings.ToLower(c.Name)
		if c.DType == "datetime" || strings.Contains(lower, "date") || strings.Contains(lower, "time") || lower == "year" || lower == "month" {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// IsGeospatial reports whether the dataset looks like it carries coordinates.
func (d *Dataset) IsGeospatial() bool {
	for _, c := range d.Columns {
		switch strings.ToLower(c.Name) {
		case "lat", "latitude", "lon", "longitude", "lng", "geometry":
			return true
		}
	}
	return false
}

// Summary returns a one-line human-readable description of the dataset.
func (d *Dataset) Summary() string {
	return fmt.Sprintf("%d rows × %d columns", d.Shape.Rows, d.Shape.Cols)
}

// PromptInfo renders the dataset description block used in LLM prompts:
// columns with dtypes, shape, and the sample rows.
func (d *Dataset) PromptInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data variable: %s\n", d.VariableName)
	fmt.Fprintf(&b, "Shape: %d rows, %d columns\n", d.Shape.Rows, d.Shape.Cols)
	b.WriteString("Columns:\n")
	for _, c := range d.Columns {
		fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, c.DType)
	}
	if len(d.Sample) > 0 {
		b.WriteString("Sample rows:\n")
		for _, row := range d.Sample {
			parts := make([]string, 0, len(d.Columns))
			for _, c := range d.Columns {
				parts = append(parts, fmt.Sprintf("%s=%s", c.Name, row[c.Name]))
			}
			fmt.Fprintf(&b, "  {%s}\n", strings.Join(parts, ", "))
		}
	}
	if cols := d.TemporalColumns(); len(cols) > 0 {
		fmt.Fprintf(&b, "Temporal columns: %s\n", strings.Join(cols, ", "))
	}
	if d.IsGeospatial() {
		b.WriteString("Note: data appears geospatial (coordinate columns present)\n")
	}
	return b.String()
}

// inferDType guesses a coarse dtype from the non-empty values of a column.
// The most specific type that fits every value wins.
func inferDType(values []string) string {
	if len(values) == 0 {
		return "object"
	}

	allInt, allFloat, allBool, allTime := true, true, true, true
	seen := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
		}
		if _, err := strconv.ParseBool(v); err != nil {
			allBool = false
		}
		if !looksLikeTime(v) {
			allTime = false
		}
	}
	if !seen {
		return "object"
	}

	switch {
	case allBool:
		return "bool"
	case allInt:
		return "int64"
	case allFloat:
		return "float64"
	case allTime:
		return "datetime"
	default:
		return "object"
	}
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2006-01",
}

func looksLikeTime(v string) bool {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
