package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockLLM is a canned completion client.
type mockLLM struct {
	response string
	err      error
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return m.response, m.err
}

func (m *mockLLM) CompleteWithStreaming(ctx context.Context, system, user string) (<-chan string, <-chan error) {
	chunks := strings.SplitAfter(m.response, " ")
	content := make(chan string, len(chunks))
	errs := make(chan error, 1)
	if m.err == nil {
		for _, chunk := range chunks {
			content <- chunk
		}
	}
	close(content)
	errs <- m.err
	return content, errs
}

func (m *mockLLM) GetModel() string { return "mock" }

func TestCleanCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare code passes through",
			raw:  "export default function W() {}",
			want: "export default function W() {}",
		},
		{
			name: "javascript fence stripped",
			raw:  "```javascript\nexport default function W() {}\n```",
			want: "export default function W() {}",
		},
		{
			name: "unlabeled fence stripped",
			raw:  "```\nexport default function W() {}\n```",
			want: "export default function W() {}",
		},
		{
			name: "surrounding prose dropped",
			raw:  "Here is the widget:\n```js\nexport default function W() {}\n```\nLet me know if it works.",
			want: "export default function W() {}",
		},
		{
			name: "whitespace trimmed",
			raw:  "  \nexport default function W() {}\n ",
			want: "export default function W() {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCode(tt.raw); got != tt.want {
				t.Errorf("CleanCode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServiceStreamsChunks(t *testing.T) {
	mock := &mockLLM{response: "export default function W({ model, html, React }) {}"}
	svc := NewService(mock)

	var chunks []string
	code, err := svc.GenerateWidgetCode(context.Background(), GenerateRequest{Description: "a widget"}, func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("GenerateWidgetCode: %v", err)
	}
	if code != mock.response {
		t.Errorf("code = %q", code)
	}
	if strings.Join(chunks, "") != mock.response {
		t.Errorf("chunks do not reassemble the response: %v", chunks)
	}
}

func TestServiceWrapsCollaboratorError(t *testing.T) {
	mock := &mockLLM{err: errors.New("429 too many requests")}
	svc := NewService(mock)

	_, err := svc.GenerateWidgetCode(context.Background(), GenerateRequest{}, nil)
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("generate err = %v, want ErrCollaborator", err)
	}

	_, err = svc.FixCodeError(context.Background(), FixRequest{Code: "x"})
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("fix err = %v, want ErrCollaborator", err)
	}

	_, err = svc.GenerateAuditReport(context.Background(), AuditRequest{Code: "x"})
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("audit err = %v, want ErrCollaborator", err)
	}
}

func TestBuildContractSectionDeterministic(t *testing.T) {
	exports := map[string]string{"zeta": "z", "alpha": "a", "mid": "m"}

	first := buildContractSection(exports, nil)
	for i := 0; i < 20; i++ {
		if buildContractSection(exports, nil) != first {
			t.Fatal("contract section is not deterministic across map iterations")
		}
	}
	if strings.Index(first, "alpha") > strings.Index(first, "zeta") {
		t.Errorf("names not sorted:\n%s", first)
	}
}

func TestBuildAuditPromptScoping(t *testing.T) {
	code := "line one\nline two\nline three"

	full := buildAuditPrompt(AuditRequest{Code: code, Level: "full"})
	if !strings.Contains(full, "full_audit") {
		t.Error("full level should request the full_audit schema")
	}
	if !strings.Contains(full, "   1| line one") {
		t.Errorf("lines not numbered:\n%s", full)
	}
	if strings.Contains(full, "changed since the last audit") {
		t.Error("unscoped audit must not mention changed lines")
	}

	scoped := buildAuditPrompt(AuditRequest{Code: code, Level: "fast", ChangedLines: []int{2, 3}})
	if !strings.Contains(scoped, "fast_audit") {
		t.Error("fast level should request the fast_audit schema")
	}
	if !strings.Contains(scoped, "Only lines 2, 3 changed") {
		t.Errorf("scope hint missing:\n%s", scoped)
	}
}

func TestBuildGeneratePromptComposition(t *testing.T) {
	prompt := buildGeneratePrompt(GenerateRequest{
		Description:    "bar chart with a tooltip",
		BaseCode:       "export function BarChart() {}",
		BaseComponents: []string{"BarChart"},
		Theme:          "dark",
	})

	for _, want := range []string{
		"Base widget to build upon",
		"export function BarChart() {}",
		"Reusable components from the base widget: BarChart",
		"Visual theme: dark",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNewUnsupportedModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GOOGLE_API_KEY", "test-key")

	if _, err := New("llama-99"); err == nil {
		t.Error("expected error for unknown model family")
	}
}
