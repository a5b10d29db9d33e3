// Package store is the content-addressable artifact cache for generated
// widget code. The SQLite index lives at .widgetsmith/artifacts.db; code
// payloads are plain .js files under .widgetsmith/widgets/ so users can
// read and diff them. An index row without its payload file is treated as
// a cache miss, never an error.
package store

import (
	"regexp"
	"sort"
	"time"
)

// Contract declares the state a widget exposes to and consumes from its
// host. Keys are state names, values are natural-language descriptions.
type Contract struct {
	Exports map[string]string
	Imports map[string]string
}

// DataShape is the row/column count of the dataset an artifact was built for.
type DataShape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Artifact is one cached widget version. Artifacts are append-only: a
// revision produces a new row linked through BaseArtifactID.
type Artifact struct {
	ID                string    // shortHash-vN, or ext-XXXXXXXX for external loads
	Slug              string    // human-readable file stem
	ContentHash       string    // full cache key (hex SHA-256)
	ShortHash         string    // first 10 hex chars of ContentHash
	Version           int       // 1-based per slug
	SourceDescription string    // raw description as given by the caller
	DataVariableName  string
	DataShape         DataShape
	ExportsSignature  string
	ImportsSignature  string
	ThemeSignature    string
	ModelID           string    // informational only, never part of the cache key
	BaseArtifactID    string    // lineage parent, empty for roots
	ComponentNames    []string  // exported capitalized identifiers
	FileName          string    // payload file name under widgets/
	CreatedAt         time.Time
	LastUsedAt        time.Time
	Code              string    // payload, populated on load
}

var componentDeclRe = regexp.MustCompile(`export\s+(?:default\s+)?(?:async\s+)?(?:function|const|class|let|var)\s+([A-Z][A-Za-z0-9_]*)`)

// ExtractComponentNames returns the capitalized exported identifiers in
// widget code, sorted and deduplicated. These are the names a composing
// widget can reference.
func ExtractComponentNames(code string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range componentDeclRe.FindAllStringSubmatch(code, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}
