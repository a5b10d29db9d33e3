package audit

import (
	"testing"
)

func TestParseReportFast(t *testing.T) {
	raw := `{
	  "fast_audit": {
	    "concerns": [
	      {
	        "id": "DATA.1",
	        "location": "global",
	        "summary": "rows with missing values are dropped",
	        "impact": "high",
	        "default": true
	      },
	      {
	        "id": "PRESENTATION.1",
	        "location": [12, 10, 12],
	        "summary": "y axis starts at zero",
	        "impact": "low"
	      }
	    ],
	    "open_questions": ["should nulls be imputed instead?"]
	  }
	}`

	concerns, questions, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if len(concerns) != 2 {
		t.Fatalf("got %d concerns, want 2", len(concerns))
	}

	if !concerns[0].IsGlobal() {
		t.Error("DATA.1 should be global")
	}
	if concerns[0].Category() != "DATA" {
		t.Errorf("category = %q", concerns[0].Category())
	}
	if !concerns[0].IsDefault {
		t.Error("default flag lost")
	}

	// Duplicate lines collapsed, sorted
	if len(concerns[1].Location) != 2 || concerns[1].Location[0] != 10 || concerns[1].Location[1] != 12 {
		t.Errorf("location = %v, want [10 12]", concerns[1].Location)
	}

	if len(questions) != 1 {
		t.Errorf("questions = %v", questions)
	}
}

func TestParseReportFullRoot(t *testing.T) {
	raw := `{
	  "full_audit": {
	    "concerns": [
	      {
	        "id": "COMPUTATION.1",
	        "location": [3],
	        "summary": "mean, not median",
	        "impact": "medium",
	        "rationale": "mean is the conventional default",
	        "alternatives": [
	          {"option": "median", "when_better": "skewed data", "when_worse": "symmetric data"}
	        ]
	      }
	    ]
	  }
	}`

	concerns, _, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if concerns[0].Rationale == "" {
		t.Error("rationale lost")
	}
	if len(concerns[0].Alternatives) != 1 || concerns[0].Alternatives[0].Option != "median" {
		t.Errorf("alternatives = %+v", concerns[0].Alternatives)
	}
}

func TestParseReportErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "here is your audit"},
		{"missing root", `{"audit": {"concerns": []}}`},
		{"bad location string", `{"fast_audit": {"concerns": [{"id": "DATA.1", "location": "lines 3-5", "impact": "low"}]}}`},
		{"missing id", `{"fast_audit": {"concerns": [{"location": "global", "impact": "low"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseReport(tt.raw); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseReportNormalizesImpact(t *testing.T) {
	raw := `{"fast_audit": {"concerns": [{"id": "DATA.1", "location": "global", "impact": "CRITICAL"}]}}`
	concerns, _, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if concerns[0].Impact != "medium" {
		t.Errorf("impact = %q, want medium fallback", concerns[0].Impact)
	}
}
