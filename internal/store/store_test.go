package store

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCode = `export default function Widget({ model, html, React }) {
  return html` + "`<div class=\"chart\"></div>`" + `;
}
export function BarChart(props) {}
`

func testKey() KeyInputs {
	return KeyInputs{
		Description:      "bar chart of sales by region",
		DataVariableName: "sales",
		DataShape:        DataShape{Rows: 120, Cols: 3},
	}
}

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	s, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLookup(t *testing.T) {
	s := newTestStore(t)
	key := testKey()

	saved, err := s.Save(SaveRequest{Key: key, Code: sampleCode, ModelID: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Slug != "bar_chart_sales_region" {
		t.Errorf("slug = %q, want bar_chart_sales_region", saved.Slug)
	}
	if saved.Version != 1 {
		t.Errorf("version = %d, want 1", saved.Version)
	}
	if saved.ID != saved.ShortHash+"-v1" {
		t.Errorf("ID = %q, want %s-v1", saved.ID, saved.ShortHash)
	}

	got, err := s.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit, got miss")
	}
	if got.Code != sampleCode {
		t.Error("payload code does not round-trip")
	}
	if got.ModelID != "claude-sonnet-4-5" {
		t.Errorf("modelID = %q", got.ModelID)
	}
}

func TestLookupMiss(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Lookup(testKey())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss on empty store, got %v", got.ID)
	}
}

func TestSaveIsNotDeduplicated(t *testing.T) {
	s := newTestStore(t)
	key := testKey()

	first, err := s.Save(SaveRequest{Key: key, Code: sampleCode})
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second, err := s.Save(SaveRequest{Key: key, Code: sampleCode})
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if first.Version != 1 || second.Version != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", first.Version, second.Version)
	}
	if first.ID == second.ID {
		t.Error("replayed save must produce a distinct artifact ID")
	}

	// Lookup returns the newest version
	got, err := s.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got == nil || got.ID != second.ID {
		t.Errorf("lookup should return newest version, got %+v", got)
	}
}

func TestMissingPayloadIsCacheMiss(t *testing.T) {
	s := newTestStore(t)
	key := testKey()

	saved, err := s.Save(SaveRequest{Key: key, Code: sampleCode})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(s.widgetsDir, saved.FileName)); err != nil {
		t.Fatalf("remove payload: %v", err)
	}

	got, err := s.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup must not error on missing payload, got %v", err)
	}
	if got != nil {
		t.Error("missing payload should be a cache miss")
	}
}

func TestTwoPhaseLineage(t *testing.T) {
	s := newTestStore(t)

	base, err := s.Save(SaveRequest{Key: testKey(), Code: sampleCode})
	if err != nil {
		t.Fatalf("Save base: %v", err)
	}

	revKey := testKey()
	revKey.Description = "bar chart of sales by region, sorted"
	revised, err := s.Save(SaveRequest{Key: revKey, Code: sampleCode})
	if err != nil {
		t.Fatalf("Save revision: %v", err)
	}
	if revised.BaseArtifactID != "" {
		t.Error("base link must not be set before SetBaseArtifact")
	}

	if err := s.SetBaseArtifact(revised.ID, base.ID); err != nil {
		t.Fatalf("SetBaseArtifact: %v", err)
	}

	got, err := s.LoadByID(revised.ID)
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	if got.BaseArtifactID != base.ID {
		t.Errorf("base = %q, want %q", got.BaseArtifactID, base.ID)
	}
}

func TestSetBaseArtifactUnknownID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetBaseArtifact("nope-v1", "also-nope-v1"); err == nil {
		t.Error("expected error linking unknown artifact")
	}
}

func TestLoadByIDUnknown(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadByID("missing-v1")
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	if got != nil {
		t.Error("unknown ID should return nil")
	}
}

func TestLoadExternal(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "custom_widget.js")
	if err := os.WriteFile(path, []byte(sampleCode), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := s.LoadExternal(path)
	if err != nil {
		t.Fatalf("LoadExternal: %v", err)
	}
	if len(a.ID) != len("ext-")+8 || a.ID[:4] != "ext-" {
		t.Errorf("expected synthetic ext-XXXXXXXX id, got %q", a.ID)
	}
	if a.Code != sampleCode {
		t.Error("external code not loaded")
	}
	found := false
	for _, name := range a.ComponentNames {
		if name == "BarChart" {
			found = true
		}
	}
	if !found {
		t.Errorf("components = %v, want BarChart included", a.ComponentNames)
	}

	// External artifacts are not persisted
	if got, _ := s.LoadByID(a.ID); got != nil {
		t.Error("external artifact must not land in the index")
	}
}

func TestVersionsOf(t *testing.T) {
	s := newTestStore(t)
	key := testKey()

	for i := 0; i < 3; i++ {
		if _, err := s.Save(SaveRequest{Key: key, Code: sampleCode}); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	versions, err := s.VersionsOf("bar_chart_sales_region")
	if err != nil {
		t.Fatalf("VersionsOf: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Errorf("version[%d] = %d, want %d", i, v.Version, i+1)
		}
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(SaveRequest{Key: testKey(), Code: sampleCode})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if got, _ := s.Lookup(testKey()); got != nil {
		t.Error("lookup should miss after clear")
	}
	if _, err := os.Stat(filepath.Join(s.widgetsDir, saved.FileName)); !os.IsNotExist(err) {
		t.Error("payload file should be removed by clear")
	}
}

func TestClearByID(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Save(SaveRequest{Key: testKey(), Code: sampleCode})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	otherKey := testKey()
	otherKey.Description = "line chart of sales"
	b, err := s.Save(SaveRequest{Key: otherKey, Code: sampleCode})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.ClearByID(a.ID); err != nil {
		t.Fatalf("ClearByID: %v", err)
	}
	if got, _ := s.LoadByID(a.ID); got != nil {
		t.Error("cleared artifact still loads")
	}
	if got, _ := s.LoadByID(b.ID); got == nil {
		t.Error("unrelated artifact was cleared")
	}
}
