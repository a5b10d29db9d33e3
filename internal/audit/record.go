// Package audit keeps a history of LLM audit reports over widget code and
// reconciles them incrementally: when code changes, only concerns touching
// changed lines are re-examined, everything else is carried forward.
//
// Records are append-only. A re-audit never mutates a prior record; it
// writes a new one merging reused and fresh concerns.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Audit levels.
const (
	LevelFast = "fast"
	LevelFull = "full"
)

// Alternative is one alternative approach attached to a full-level concern.
type Alternative struct {
	Option     string `json:"option"`
	WhenBetter string `json:"when_better,omitempty"`
	WhenWorse  string `json:"when_worse,omitempty"`
}

// Concern is a single finding. Location is nil for global concerns and a
// sorted list of 1-based line numbers otherwise. LineHashes snapshots the
// content hash of each referenced line at report time, which is what makes
// per-concern staleness checks possible later.
type Concern struct {
	ID               string         `json:"id"`
	Location         []int          `json:"location,omitempty"`
	Summary          string         `json:"summary"`
	Details          string         `json:"details,omitempty"`
	TechnicalSummary string         `json:"technical_summary,omitempty"`
	Impact           string         `json:"impact"` // high, medium, low
	IsDefault        bool           `json:"default,omitempty"`
	Rationale        string         `json:"rationale,omitempty"`
	Alternatives     []Alternative  `json:"alternatives,omitempty"`
	LineHashes       map[int]string `json:"line_hashes,omitempty"`
}

// IsGlobal reports whether the concern applies to the artifact as a whole.
func (c *Concern) IsGlobal() bool {
	return len(c.Location) == 0
}

// Category returns the taxonomy prefix of the concern ID (DATA, COMPUTATION,
// PRESENTATION, INTERACTION).
func (c *Concern) Category() string {
	if i := strings.IndexByte(c.ID, '.'); i > 0 {
		return c.ID[:i]
	}
	return c.ID
}

// Record is one persisted audit report.
type Record struct {
	AuditID       string         `json:"audit_id"`
	ArtifactID    string         `json:"artifact_id"`
	Level         string         `json:"level"`
	CodeHash      string         `json:"code_hash"`
	LineHashes    map[int]string `json:"line_hashes"`
	Concerns      []Concern      `json:"concerns"`
	OpenQuestions []string       `json:"open_questions,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CodeHash hashes complete widget code.
func CodeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// LineHashes hashes every line of code, keyed by 1-based line number.
// Line content is hashed as-is, including leading whitespace; a pure
// indentation change is a real change.
func LineHashes(code string) map[int]string {
	lines := strings.Split(code, "\n")
	hashes := make(map[int]string, len(lines))
	for i, line := range lines {
		sum := sha256.Sum256([]byte(line))
		hashes[i+1] = hex.EncodeToString(sum[:])
	}
	return hashes
}
