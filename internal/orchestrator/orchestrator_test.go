package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"widgetsmith/internal/dataset"
	"widgetsmith/internal/provider"
	"widgetsmith/internal/store"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The genai dependency chain starts an opencensus stats worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const cleanWidget = `import * as d3 from "https://esm.sh/d3@7";
export default function Widget({ model, html, React }) {
  const data = model.get("sales");
  model.on("change:year", () => {});
  const select = (id) => {
    model.set("selection", id);
    model.save_changes();
  };
  return html` + "`<div class=\"chart\"></div>`" + `;
}
`

// brokenWidget never calls model.set for the declared export.
const brokenWidget = `export default function Widget({ model, html, React }) {
  model.on("change:year", () => {});
  return html` + "`<div></div>`" + `;
}
`

// mockCollaborator implements provider.Collaborator with pluggable
// function fields and call counters.
type mockCollaborator struct {
	mu sync.Mutex

	model string

	generateFunc func(provider.GenerateRequest) (string, error)
	reviseFunc   func(provider.ReviseRequest) (string, error)
	fixFunc      func(provider.FixRequest) (string, error)

	genCalls    int
	reviseCalls int
	fixCalls    int
	fixRequests []provider.FixRequest
}

func (m *mockCollaborator) GenerateWidgetCode(ctx context.Context, req provider.GenerateRequest, onChunk func(string)) (string, error) {
	m.mu.Lock()
	m.genCalls++
	fn := m.generateFunc
	m.mu.Unlock()
	if fn == nil {
		return cleanWidget, nil
	}
	return fn(req)
}

func (m *mockCollaborator) ReviseWidgetCode(ctx context.Context, req provider.ReviseRequest, onChunk func(string)) (string, error) {
	m.mu.Lock()
	m.reviseCalls++
	fn := m.reviseFunc
	m.mu.Unlock()
	if fn == nil {
		return cleanWidget, nil
	}
	return fn(req)
}

func (m *mockCollaborator) FixCodeError(ctx context.Context, req provider.FixRequest) (string, error) {
	m.mu.Lock()
	m.fixCalls++
	m.fixRequests = append(m.fixRequests, req)
	fn := m.fixFunc
	m.mu.Unlock()
	if fn == nil {
		return cleanWidget, nil
	}
	return fn(req)
}

func (m *mockCollaborator) GenerateAuditReport(ctx context.Context, req provider.AuditRequest) (string, error) {
	return "", errors.New("not used")
}

func (m *mockCollaborator) Model() string {
	if m.model != "" {
		return m.model
	}
	return "mock-model"
}

func (m *mockCollaborator) counts() (gen, revise, fix int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.genCalls, m.reviseCalls, m.fixCalls
}

func salesDataset() *dataset.Dataset {
	return &dataset.Dataset{
		VariableName: "sales",
		Columns: []dataset.Column{
			{Name: "region", DType: "object"},
			{Name: "year", DType: "int64"},
			{Name: "amount", DType: "float64"},
		},
		Shape: dataset.Shape{Rows: 120, Cols: 3},
	}
}

func newTestOrchestrator(t *testing.T, mock *mockCollaborator, opts ...Option) *Orchestrator {
	t.Helper()
	artifacts, err := store.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	t.Cleanup(func() { artifacts.Close() })
	return New(artifacts, mock, opts...)
}

func barChartRequest() GenerateRequest {
	return GenerateRequest{
		Description: "bar chart of sales by region",
		Dataset:     salesDataset(),
		Exports:     map[string]string{"selection": "selected region"},
		Imports:     map[string]string{"year": "year filter"},
	}
}

func TestGenerateCleanFirstTry(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	var events []Event
	req := barChartRequest()
	req.OnEvent = func(e Event) { events = append(events, e) }

	out, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !out.Clean || out.CacheHit || out.RepairAttempts != 0 {
		t.Errorf("outcome = %+v, want clean first-try miss", out)
	}
	if out.Artifact.Slug != "bar_chart_sales_region" {
		t.Errorf("slug = %q", out.Artifact.Slug)
	}
	if out.Artifact.Version != 1 {
		t.Errorf("version = %d", out.Artifact.Version)
	}
	if out.Artifact.ModelID != "mock-model" {
		t.Errorf("modelID = %q", out.Artifact.ModelID)
	}

	wantSteps := []string{StepAnalyzing, StepGenerating, StepValidating}
	var gotSteps []string
	for _, e := range events {
		if e.Type == EventStep {
			gotSteps = append(gotSteps, e.Step)
		}
	}
	if strings.Join(gotSteps, ",") != strings.Join(wantSteps, ",") {
		t.Errorf("steps = %v, want %v", gotSteps, wantSteps)
	}
	if events[len(events)-1].Type != EventComplete {
		t.Errorf("last event = %+v, want complete", events[len(events)-1])
	}
}

func TestGenerateSecondCallIsCacheHit(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	first, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	second, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if !second.CacheHit {
		t.Error("second identical request should hit the cache")
	}
	if second.Artifact.ID != first.Artifact.ID {
		t.Errorf("cache hit returned %s, want %s", second.Artifact.ID, first.Artifact.ID)
	}
	if gen, _, _ := mock.counts(); gen != 1 {
		t.Errorf("collaborator called %d times, want 1", gen)
	}
}

func TestCacheHitAcrossModels(t *testing.T) {
	mock := &mockCollaborator{}
	artifacts, err := store.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	t.Cleanup(func() { artifacts.Close() })

	first := New(artifacts, mock)
	if _, err := first.Generate(context.Background(), barChartRequest()); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	// A different backend over the same store: the model is informational,
	// not part of the cache key.
	otherMock := &mockCollaborator{model: "other-model"}
	second := New(artifacts, otherMock)
	out, err := second.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if !out.CacheHit {
		t.Error("switching models must not force a cache miss")
	}
	if gen, _, _ := otherMock.counts(); gen != 0 {
		t.Errorf("second backend called %d times, want 0", gen)
	}
}

func TestGenerateForceSkipsCache(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	if _, err := o.Generate(context.Background(), barChartRequest()); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	req := barChartRequest()
	req.Force = true
	out, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("forced Generate: %v", err)
	}

	if out.CacheHit {
		t.Error("forced request must not report a cache hit")
	}
	if out.Artifact.Version != 2 {
		t.Errorf("forced regeneration version = %d, want 2", out.Artifact.Version)
	}
	if gen, _, _ := mock.counts(); gen != 2 {
		t.Errorf("collaborator called %d times, want 2", gen)
	}
}

func TestGenerateBroadRepair(t *testing.T) {
	mock := &mockCollaborator{
		generateFunc: func(provider.GenerateRequest) (string, error) { return brokenWidget, nil },
	}
	o := newTestOrchestrator(t, mock)

	out, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !out.Clean || out.RepairAttempts != 1 {
		t.Errorf("outcome = %+v, want clean after one repair", out)
	}

	// A missing-export contract violation is not runtime-shaped, so the fix
	// request carries the enumerated issue list, not a single error verbatim.
	mock.mu.Lock()
	fixReq := mock.fixRequests[0]
	mock.mu.Unlock()
	if !strings.Contains(fixReq.ErrorMessage, "Validation found the following problems") {
		t.Errorf("fix message = %q, want broad repair framing", fixReq.ErrorMessage)
	}
	if !strings.Contains(fixReq.ErrorMessage, "selection") {
		t.Errorf("fix message should name the missing export: %q", fixReq.ErrorMessage)
	}
}

func TestGenerateTargetedFix(t *testing.T) {
	// One runtime-shaped issue: an unclosed brace, nothing else wrong.
	truncated := strings.TrimSuffix(strings.TrimSpace(cleanWidget), "}")
	mock := &mockCollaborator{
		generateFunc: func(provider.GenerateRequest) (string, error) { return truncated, nil },
	}
	o := newTestOrchestrator(t, mock)

	out, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !out.Clean || out.RepairAttempts != 1 {
		t.Errorf("outcome = %+v, want clean after one targeted fix", out)
	}

	mock.mu.Lock()
	fixReq := mock.fixRequests[0]
	mock.mu.Unlock()
	if strings.Contains(fixReq.ErrorMessage, "Validation found") {
		t.Errorf("single runtime issue should be passed verbatim, got %q", fixReq.ErrorMessage)
	}
	if !strings.Contains(fixReq.ErrorMessage, "unclosed") {
		t.Errorf("fix message = %q, want the unclosed-bracket issue", fixReq.ErrorMessage)
	}
}

func TestGenerateBestEffortAcceptance(t *testing.T) {
	mock := &mockCollaborator{
		generateFunc: func(provider.GenerateRequest) (string, error) { return brokenWidget, nil },
		fixFunc:      func(provider.FixRequest) (string, error) { return brokenWidget, nil },
	}
	o := newTestOrchestrator(t, mock, WithMaxRepairAttempts(2))

	out, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("pipeline must not hard-fail on stubborn code: %v", err)
	}

	if out.Clean {
		t.Error("outcome should not be clean")
	}
	if len(out.Issues) == 0 {
		t.Error("outstanding issues must be reported")
	}
	if out.RepairAttempts != 2 {
		t.Errorf("attempts = %d, want 2", out.RepairAttempts)
	}
	if out.Artifact == nil {
		t.Fatal("best-effort code must still be persisted")
	}
	if _, _, fix := mock.counts(); fix != 2 {
		t.Errorf("fix calls = %d, want exactly the budget", fix)
	}
}

func TestGenerateRepairCallFailureAcceptsCurrent(t *testing.T) {
	mock := &mockCollaborator{
		generateFunc: func(provider.GenerateRequest) (string, error) { return brokenWidget, nil },
		fixFunc: func(provider.FixRequest) (string, error) {
			return "", errors.New("rate limited")
		},
	}
	o := newTestOrchestrator(t, mock)

	out, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("failed repair must downgrade, not abort: %v", err)
	}
	if out.Clean {
		t.Error("outcome should carry the unresolved issues")
	}
	if out.Artifact.Code != brokenWidget {
		t.Error("current code should be kept when the repair call fails")
	}
}

func TestGenerateCollaboratorFailureAborts(t *testing.T) {
	mock := &mockCollaborator{
		generateFunc: func(provider.GenerateRequest) (string, error) {
			return "", provider.ErrCollaborator
		},
	}
	o := newTestOrchestrator(t, mock)

	_, err := o.Generate(context.Background(), barChartRequest())
	if !errors.Is(err, provider.ErrCollaborator) {
		t.Fatalf("err = %v, want ErrCollaborator", err)
	}
}

func TestGenerateStaleBaseFailsEarly(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	req := barChartRequest()
	req.BaseArtifactID = "ghost-v1"
	_, err := o.Generate(context.Background(), req)
	if !errors.Is(err, ErrStaleReference) {
		t.Fatalf("err = %v, want ErrStaleReference", err)
	}
	if gen, _, _ := mock.counts(); gen != 0 {
		t.Error("stale base must fail before any collaborator call")
	}
}

func TestGenerateComposition(t *testing.T) {
	var gotBase provider.GenerateRequest
	mock := &mockCollaborator{}
	mock.generateFunc = func(req provider.GenerateRequest) (string, error) {
		gotBase = req
		return cleanWidget, nil
	}
	o := newTestOrchestrator(t, mock)

	base, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("base Generate: %v", err)
	}

	req := barChartRequest()
	req.Description = "bar chart of sales by region with a tooltip"
	req.BaseArtifactID = base.Artifact.ID
	out, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("composed Generate: %v", err)
	}

	if gotBase.BaseCode == "" {
		t.Error("base code not passed to the collaborator")
	}
	if out.Artifact.BaseArtifactID != base.Artifact.ID {
		t.Errorf("lineage = %q, want %q", out.Artifact.BaseArtifactID, base.Artifact.ID)
	}
}

func TestReviseStaleReference(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	_, err := o.Revise(context.Background(), ReviseRequest{BaseArtifactID: "ghost-v1", Instruction: "sort bars"})
	if !errors.Is(err, ErrStaleReference) {
		t.Fatalf("err = %v, want ErrStaleReference", err)
	}
	if _, revise, _ := mock.counts(); revise != 0 {
		t.Error("stale reference must fail before any collaborator call")
	}
}

func TestReviseLinksLineage(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	base, err := o.Generate(context.Background(), barChartRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	out, err := o.Revise(context.Background(), ReviseRequest{
		BaseArtifactID: base.Artifact.ID,
		Instruction:    "sort bars descending",
		Exports:        map[string]string{"selection": "selected region"},
		Imports:        map[string]string{"year": "year filter"},
	})
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}

	if out.Artifact.BaseArtifactID != base.Artifact.ID {
		t.Errorf("lineage = %q, want %q", out.Artifact.BaseArtifactID, base.Artifact.ID)
	}
	if out.Artifact.ID == base.Artifact.ID {
		t.Error("revision must produce a new artifact")
	}
}

func TestFixRuntimeErrorStaleReference(t *testing.T) {
	mock := &mockCollaborator{}
	o := newTestOrchestrator(t, mock)

	_, err := o.FixRuntimeError(context.Background(), "ghost-v1", "TypeError: x is undefined", nil)
	if !errors.Is(err, ErrStaleReference) {
		t.Fatalf("err = %v, want ErrStaleReference", err)
	}
	if _, _, fix := mock.counts(); fix != 0 {
		t.Error("stale reference must fail before any collaborator call")
	}
}

func TestConcurrentIdenticalRequestsShareOneGeneration(t *testing.T) {
	release := make(chan struct{})
	mock := &mockCollaborator{}
	mock.generateFunc = func(provider.GenerateRequest) (string, error) {
		<-release
		return cleanWidget, nil
	}
	o := newTestOrchestrator(t, mock)

	outcomes := make(chan *Outcome, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			out, err := o.Generate(context.Background(), barChartRequest())
			outcomes <- out
			errs <- err
		}()
	}

	// Let both calls reach the in-flight group before the first completes.
	time.Sleep(50 * time.Millisecond)
	close(release)

	shared := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if out := <-outcomes; out.Shared {
			shared++
		}
	}

	if gen, _, _ := mock.counts(); gen != 1 {
		t.Errorf("collaborator called %d times, want 1 shared generation", gen)
	}
	// singleflight flags every caller of a shared flight
	if shared != 2 {
		t.Errorf("shared outcomes = %d, want both callers flagged", shared)
	}
}
