// Package provider is the LLM collaborator behind widget generation,
// revision, repair, and auditing. A Collaborator wraps a low-level
// completion client with widget-specific prompts; implementations exist
// for Anthropic (REST) and Gemini (genai SDK).
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"widgetsmith/internal/config"
)

// ErrCollaborator marks failures of the LLM collaborator itself (network,
// auth, quota). Callers match with errors.Is and surface the failure rather
// than treating it as bad widget code.
var ErrCollaborator = errors.New("collaborator failure")

// LLMClient is the low-level completion surface shared by all backends.
type LLMClient interface {
	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteWithStreaming returns incremental content deltas.
	CompleteWithStreaming(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error)

	// GetModel returns the model this client talks to.
	GetModel() string
}

// GenerateRequest describes a fresh widget to generate.
type GenerateRequest struct {
	Description    string
	DataInfo       string            // rendered dataset description block
	Exports        map[string]string // state name -> description
	Imports        map[string]string
	Theme          string
	BaseCode       string   // composition: code of the base widget, if any
	BaseComponents []string // exported component names of the base widget
}

// ReviseRequest describes a modification of an existing widget.
type ReviseRequest struct {
	Instruction string
	BaseCode    string
	DataInfo    string
	Exports     map[string]string
	Imports     map[string]string
	Theme       string
}

// FixRequest describes a repair of broken widget code.
type FixRequest struct {
	Code         string
	ErrorMessage string
	DataInfo     string
}

// AuditRequest describes an audit pass over widget code.
type AuditRequest struct {
	Code         string
	Description  string
	DataInfo     string
	Level        string // "fast" or "full"
	ChangedLines []int  // scope hint for incremental audits; nil means full scope
}

// Collaborator is the widget-level LLM surface. Streaming operations call
// onChunk synchronously per content delta; onChunk may be nil.
type Collaborator interface {
	GenerateWidgetCode(ctx context.Context, req GenerateRequest, onChunk func(string)) (string, error)
	ReviseWidgetCode(ctx context.Context, req ReviseRequest, onChunk func(string)) (string, error)
	FixCodeError(ctx context.Context, req FixRequest) (string, error)
	GenerateAuditReport(ctx context.Context, req AuditRequest) (string, error)
	Model() string
}

// New builds a Collaborator for a model name or provider shortcut,
// resolving the API key from the environment.
func New(model string) (Collaborator, error) {
	resolved := config.ResolveModel(model)
	apiKey, err := config.APIKeyFor(resolved)
	if err != nil {
		return nil, err
	}

	switch config.ProviderFor(resolved) {
	case "anthropic":
		return NewService(NewAnthropicClient(apiKey, resolved)), nil
	case "google":
		client, err := NewGeminiClient(apiKey, resolved)
		if err != nil {
			return nil, err
		}
		return NewService(client), nil
	default:
		return nil, fmt.Errorf("unsupported model %q", resolved)
	}
}

// Service implements Collaborator over any LLMClient.
type Service struct {
	client LLMClient
}

// NewService wraps a completion client with widget prompts.
func NewService(client LLMClient) *Service {
	return &Service{client: client}
}

// Model returns the underlying model ID.
func (s *Service) Model() string {
	return s.client.GetModel()
}

// GenerateWidgetCode produces widget code for a fresh request.
func (s *Service) GenerateWidgetCode(ctx context.Context, req GenerateRequest, onChunk func(string)) (string, error) {
	raw, err := s.stream(ctx, widgetSystemPrompt, buildGeneratePrompt(req), onChunk)
	if err != nil {
		return "", fmt.Errorf("%w: generate: %v", ErrCollaborator, err)
	}
	return CleanCode(raw), nil
}

// ReviseWidgetCode modifies existing widget code per an instruction.
func (s *Service) ReviseWidgetCode(ctx context.Context, req ReviseRequest, onChunk func(string)) (string, error) {
	raw, err := s.stream(ctx, widgetSystemPrompt, buildRevisePrompt(req), onChunk)
	if err != nil {
		return "", fmt.Errorf("%w: revise: %v", ErrCollaborator, err)
	}
	return CleanCode(raw), nil
}

// FixCodeError repairs widget code given an error description.
func (s *Service) FixCodeError(ctx context.Context, req FixRequest) (string, error) {
	raw, err := s.client.CompleteWithSystem(ctx, widgetSystemPrompt, buildFixPrompt(req))
	if err != nil {
		return "", fmt.Errorf("%w: fix: %v", ErrCollaborator, err)
	}
	return CleanCode(raw), nil
}

// GenerateAuditReport runs an audit pass and returns the raw JSON report.
func (s *Service) GenerateAuditReport(ctx context.Context, req AuditRequest) (string, error) {
	raw, err := s.client.CompleteWithSystem(ctx, auditSystemPrompt, buildAuditPrompt(req))
	if err != nil {
		return "", fmt.Errorf("%w: audit: %v", ErrCollaborator, err)
	}
	return stripFences(raw), nil
}

// stream collects a streamed completion, forwarding deltas to onChunk.
func (s *Service) stream(ctx context.Context, system, user string, onChunk func(string)) (string, error) {
	contentChan, errChan := s.client.CompleteWithStreaming(ctx, system, user)

	var b strings.Builder
	for chunk := range contentChan {
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := <-errChan; err != nil {
		return "", err
	}
	return b.String(), nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:javascript|js|jsx|json)?\\s*\\n(.*?)```")

// CleanCode strips markdown fences and surrounding prose from an LLM
// response, keeping the first fenced block if one exists.
func CleanCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// stripFences removes markdown fences but keeps everything else, used for
// JSON report responses where prose outside the fence is rare but harmless.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}
