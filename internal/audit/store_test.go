package audit

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func testRecord(artifactID, level string) *Record {
	return &Record{
		AuditID:    uuid.NewString(),
		ArtifactID: artifactID,
		Level:      level,
		CodeHash:   "deadbeef",
		LineHashes: map[int]string{1: "h1", 2: "h2", 14: "h14"},
		Concerns: []Concern{
			{ID: "DATA.1", Summary: "drops nulls", Impact: "high", IsDefault: true},
			{
				ID:         "PRESENTATION.1",
				Location:   []int{2, 14},
				Summary:    "fixed palette",
				Impact:     "low",
				LineHashes: map[int]string{2: "h2", 14: "h14"},
				Alternatives: []Alternative{
					{Option: "viridis", WhenBetter: "continuous data", WhenWorse: "categorical data"},
				},
			},
		},
		OpenQuestions: []string{"impute instead?"},
		CreatedAt:     time.Now(),
	}
}

func TestAppendAndLatestFor(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	rec := testRecord("abc-v1", LevelFast)
	if err := s.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.LatestFor("abc-v1", LevelFast)
	if err != nil {
		t.Fatalf("LatestFor: %v", err)
	}
	if got == nil {
		t.Fatal("record not found after append")
	}

	if diff := cmp.Diff(rec.LineHashes, got.LineHashes); diff != "" {
		t.Errorf("line hashes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rec.Concerns, got.Concerns); diff != "" {
		t.Errorf("concerns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rec.OpenQuestions, got.OpenQuestions); diff != "" {
		t.Errorf("open questions (-want +got):\n%s", diff)
	}
}

func TestLatestForAbsent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	got, err := s.LatestFor("never-v1", LevelFast)
	if err != nil {
		t.Fatalf("LatestFor: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown artifact, got %v", got.AuditID)
	}
}

func TestLevelsAreSeparate(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	if err := s.Append(testRecord("abc-v1", LevelFast)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.LatestFor("abc-v1", LevelFull)
	if err != nil {
		t.Fatalf("LatestFor: %v", err)
	}
	if got != nil {
		t.Error("fast record must not satisfy a full lookup")
	}
}

func TestClearByArtifact(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	if err := s.Append(testRecord("abc-v1", LevelFast)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(testRecord("xyz-v1", LevelFast)); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearByArtifact("abc-v1"); err != nil {
		t.Fatalf("ClearByArtifact: %v", err)
	}

	if got, _ := s.LatestFor("abc-v1", LevelFast); got != nil {
		t.Error("cleared artifact still has records")
	}
	if got, _ := s.LatestFor("xyz-v1", LevelFast); got == nil {
		t.Error("unrelated artifact lost its records")
	}
}
