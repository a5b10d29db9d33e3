package audit

import (
	"encoding/json"
	"fmt"
	"sort"
)

// rawConcern mirrors the JSON the collaborator returns. Location is either
// the string "global" or an array of line numbers, so it needs custom
// decoding before it becomes a Concern.
type rawConcern struct {
	ID               string          `json:"id"`
	Location         json.RawMessage `json:"location"`
	Summary          string          `json:"summary"`
	Details          string          `json:"details"`
	TechnicalSummary string          `json:"technical_summary"`
	Impact           string          `json:"impact"`
	IsDefault        bool            `json:"default"`
	Rationale        string          `json:"rationale"`
	Alternatives     []Alternative   `json:"alternatives"`
}

type rawReport struct {
	Concerns      []rawConcern `json:"concerns"`
	OpenQuestions []string     `json:"open_questions"`
}

// ParseReport decodes an audit report returned by the collaborator. The
// report is wrapped in a level-specific root key ("fast_audit" or
// "full_audit"); either root is accepted regardless of the requested level
// since models occasionally confuse the two.
func ParseReport(raw string) ([]Concern, []string, error) {
	var envelope map[string]rawReport
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, nil, fmt.Errorf("audit report is not valid JSON: %w", err)
	}

	report, ok := envelope["fast_audit"]
	if !ok {
		report, ok = envelope["full_audit"]
	}
	if !ok {
		return nil, nil, fmt.Errorf("audit report missing fast_audit/full_audit root")
	}

	concerns := make([]Concern, 0, len(report.Concerns))
	for i, rc := range report.Concerns {
		location, err := parseLocation(rc.Location)
		if err != nil {
			return nil, nil, fmt.Errorf("concern %d (%s): %w", i, rc.ID, err)
		}
		if rc.ID == "" {
			return nil, nil, fmt.Errorf("concern %d has no id", i)
		}
		concerns = append(concerns, Concern{
			ID:               rc.ID,
			Location:         location,
			Summary:          rc.Summary,
			Details:          rc.Details,
			TechnicalSummary: rc.TechnicalSummary,
			Impact:           normalizeImpact(rc.Impact),
			IsDefault:        rc.IsDefault,
			Rationale:        rc.Rationale,
			Alternatives:     rc.Alternatives,
		})
	}

	return concerns, report.OpenQuestions, nil
}

// parseLocation decodes "global" or an array of line numbers. Non-positive
// line numbers are dropped; duplicates are collapsed; the result is sorted.
func parseLocation(raw json.RawMessage) ([]int, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "global" || s == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected location string %q", s)
	}

	var lines []int
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("location must be \"global\" or an array of line numbers")
	}

	seen := make(map[int]bool)
	var out []int
	for _, n := range lines {
		if n > 0 && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

func normalizeImpact(impact string) string {
	switch impact {
	case "high", "medium", "low":
		return impact
	default:
		return "medium"
	}
}
