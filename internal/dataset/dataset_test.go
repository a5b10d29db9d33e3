package dataset

import (
	"strings"
	"testing"
)

const salesCSV = `region,year,amount,updated_at
north,2021,104.5,2021-03-01
south,2021,98,2021-03-01
east,2022,120.25,2022-03-01
west,2022,87.0,2022-03-01
north,2023,140.75,2023-03-01
`

func TestReadCSVInfersTypes(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(salesCSV), 3)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	if ds.Shape.Rows != 5 || ds.Shape.Cols != 4 {
		t.Errorf("shape = %+v, want 5x4", ds.Shape)
	}

	want := map[string]string{
		"region":     "object",
		"year":       "int64",
		"amount":     "float64",
		"updated_at": "datetime",
	}
	for _, c := range ds.Columns {
		if want[c.Name] != c.DType {
			t.Errorf("column %s dtype = %s, want %s", c.Name, c.DType, want[c.Name])
		}
	}
}

func TestReadCSVSampleCap(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(salesCSV), 2)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(ds.Sample) != 2 {
		t.Errorf("sample = %d rows, want 2", len(ds.Sample))
	}
	if ds.Shape.Rows != 5 {
		t.Errorf("sample cap must not affect reported rows, got %d", ds.Shape.Rows)
	}
	if ds.Sample[0]["region"] != "north" {
		t.Errorf("sample[0] = %v", ds.Sample[0])
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), 3); err == nil {
		t.Error("expected error for headerless CSV")
	}
}

func TestReadCSVRaggedRows(t *testing.T) {
	ragged := "a,b,c\n1,2,3\n4,5\n"
	ds, err := ReadCSV(strings.NewReader(ragged), 3)
	if err != nil {
		t.Fatalf("ragged rows should be tolerated: %v", err)
	}
	if ds.Shape.Rows != 2 {
		t.Errorf("rows = %d, want 2", ds.Shape.Rows)
	}
}

func TestInferDType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"ints", []string{"1", "2", "-3"}, "int64"},
		{"floats", []string{"1.5", "2", "3.25"}, "float64"},
		{"bools", []string{"true", "false", "TRUE"}, "bool"},
		{"dates", []string{"2024-01-02", "2024-02-03"}, "datetime"},
		{"mixed", []string{"1", "apple"}, "object"},
		{"empty values ignored", []string{"", "7", ""}, "int64"},
		{"all empty", []string{"", ""}, "object"},
		{"no values", nil, "object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferDType(tt.values); got != tt.want {
				t.Errorf("inferDType(%v) = %s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestTemporalColumns(t *testing.T) {
	ds := &Dataset{Columns: []Column{
		{Name: "region", DType: "object"},
		{Name: "year", DType: "int64"},
		{Name: "updated_at", DType: "datetime"},
		{Name: "order_date", DType: "object"},
	}}

	got := ds.TemporalColumns()
	want := []string{"year", "updated_at", "order_date"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("temporal = %v, want %v", got, want)
	}
}

func TestIsGeospatial(t *testing.T) {
	with := &Dataset{Columns: []Column{{Name: "Latitude"}, {Name: "Longitude"}}}
	without := &Dataset{Columns: []Column{{Name: "region"}, {Name: "amount"}}}

	if !with.IsGeospatial() {
		t.Error("lat/lon columns not detected")
	}
	if without.IsGeospatial() {
		t.Error("false positive on plain columns")
	}
}

func TestPromptInfo(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(salesCSV), 2)
	if err != nil {
		t.Fatal(err)
	}
	ds.VariableName = "sales"

	info := ds.PromptInfo()
	for _, want := range []string{
		"Data variable: sales",
		"Shape: 5 rows, 4 columns",
		"region (object)",
		"year (int64)",
		"Sample rows:",
		"region=north",
		"Temporal columns: year, updated_at",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("PromptInfo missing %q:\n%s", want, info)
		}
	}
}

func TestSanitizeVariableName(t *testing.T) {
	tests := []struct {
		stem string
		want string
	}{
		{"sales_2024", "sales_2024"},
		{"my data.final", "my_data_final"},
		{"2024sales", "_2024sales"},
		{"---", "___"},
		{"", "data"},
	}

	for _, tt := range tests {
		if got := sanitizeVariableName(tt.stem); got != tt.want {
			t.Errorf("sanitizeVariableName(%q) = %q, want %q", tt.stem, got, tt.want)
		}
	}
}
