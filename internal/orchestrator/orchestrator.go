// Package orchestrator drives the generate -> validate -> repair pipeline
// over the artifact store and the LLM collaborator.
//
// The pipeline is deliberately forgiving: a repair budget bounds LLM calls,
// and when the budget runs out the best code seen so far is accepted and
// persisted with its outstanding issues reported. Only collaborator
// failures on the initial generation and stale base references abort a run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"widgetsmith/internal/dataset"
	"widgetsmith/internal/logging"
	"widgetsmith/internal/provider"
	"widgetsmith/internal/store"
	"widgetsmith/internal/validate"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/singleflight"
)

// ErrStaleReference marks a revision or fix request whose base artifact no
// longer resolves. It fails before any collaborator call.
var ErrStaleReference = errors.New("stale artifact reference")

// DefaultMaxRepairAttempts bounds the repair loop.
const DefaultMaxRepairAttempts = 3

// Orchestrator coordinates generation runs against the store and collaborator.
type Orchestrator struct {
	artifacts         *store.ArtifactStore
	collaborator      provider.Collaborator
	maxRepairAttempts int
	inflight          singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxRepairAttempts overrides the repair budget.
func WithMaxRepairAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRepairAttempts = n
		}
	}
}

// New builds an Orchestrator.
func New(artifacts *store.ArtifactStore, collaborator provider.Collaborator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		artifacts:         artifacts,
		collaborator:      collaborator,
		maxRepairAttempts: DefaultMaxRepairAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateRequest describes one widget generation.
type GenerateRequest struct {
	Description    string
	Dataset        *dataset.Dataset
	Exports        map[string]string
	Imports        map[string]string
	Theme          string
	BaseArtifactID string // compose on top of an existing artifact
	Force          bool   // skip the cache lookup
	OnEvent        EventFunc
}

// Outcome is the result of a pipeline run. Clean distinguishes code that
// validated from code accepted best-effort with outstanding issues.
type Outcome struct {
	Artifact       *store.Artifact
	CacheHit       bool
	Shared         bool // one in-flight generation served multiple identical requests
	Clean          bool
	Issues         []string
	Warnings       []string
	RepairAttempts int
}

// Generate runs the full pipeline for a request. Concurrent calls with an
// identical cache key share a single generation; every caller of a shared
// flight receives the same outcome flagged as Shared.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (*Outcome, error) {
	if req.Dataset == nil {
		return nil, errors.New("generate request requires a dataset")
	}
	key := o.keyInputs(req)
	hash := store.CacheKey(key)

	v, err, shared := o.inflight.Do(hash, func() (interface{}, error) {
		return o.generate(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	outcome := v.(*Outcome)
	if shared {
		copied := *outcome
		copied.Shared = true
		return &copied, nil
	}
	return outcome, nil
}

func (o *Orchestrator) generate(ctx context.Context, req GenerateRequest, key store.KeyInputs) (*Outcome, error) {
	emit := req.OnEvent
	timer := logging.StartTimer(logging.CategoryGeneration, "generate widget")
	defer timer.StopWithInfo()

	emit.step(StepAnalyzing, fmt.Sprintf("Analyzing data: %s", req.Dataset.Summary()))

	// Composition base must resolve before anything is generated
	var base *store.Artifact
	if req.BaseArtifactID != "" {
		var err error
		base, err = o.artifacts.LoadByID(req.BaseArtifactID)
		if err != nil {
			emit.fail(StepAnalyzing, err)
			return nil, err
		}
		if base == nil {
			err := fmt.Errorf("%w: base artifact %s not found", ErrStaleReference, req.BaseArtifactID)
			emit.fail(StepAnalyzing, err)
			return nil, err
		}
	}

	if !req.Force {
		cached, err := o.artifacts.Lookup(key)
		if err != nil {
			emit.fail(StepAnalyzing, err)
			return nil, err
		}
		if cached != nil {
			emit.complete(fmt.Sprintf("Cache hit: %s v%d", cached.Slug, cached.Version))
			return &Outcome{Artifact: cached, CacheHit: true, Clean: true}, nil
		}
	}

	emit.step(StepGenerating, "Generating widget code")
	genReq := provider.GenerateRequest{
		Description: req.Description,
		DataInfo:    req.Dataset.PromptInfo(),
		Exports:     req.Exports,
		Imports:     req.Imports,
		Theme:       req.Theme,
	}
	if base != nil {
		genReq.BaseCode = base.Code
		genReq.BaseComponents = base.ComponentNames
	}
	code, err := o.collaborator.GenerateWidgetCode(ctx, genReq, func(chunk string) {
		emit.chunk(StepGenerating, chunk)
	})
	if err != nil {
		logging.GenerationError("generation failed: %v", err)
		emit.fail(StepGenerating, err)
		return nil, err
	}

	code, result, attempts := o.repairLoop(ctx, code, req.Exports, req.Imports, req.Dataset.PromptInfo(), emit)

	artifact, err := o.persist(key, code, base)
	if err != nil {
		emit.fail(StepValidating, err)
		return nil, err
	}

	outcome := &Outcome{
		Artifact:       artifact,
		Clean:          len(result.issues) == 0,
		Issues:         result.issues,
		Warnings:       result.warnings,
		RepairAttempts: attempts,
	}
	emit.complete(fmt.Sprintf("Widget saved: %s v%d", artifact.Slug, artifact.Version))
	return outcome, nil
}

// ReviseRequest describes a modification of an existing artifact.
type ReviseRequest struct {
	BaseArtifactID string
	Instruction    string
	Dataset        *dataset.Dataset
	Exports        map[string]string
	Imports        map[string]string
	Theme          string
	OnEvent        EventFunc
}

// Revise generates a new version of an existing artifact. The base must
// resolve before the collaborator is consulted.
func (o *Orchestrator) Revise(ctx context.Context, req ReviseRequest) (*Outcome, error) {
	emit := req.OnEvent

	base, err := o.artifacts.LoadByID(req.BaseArtifactID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		err := fmt.Errorf("%w: base artifact %s not found", ErrStaleReference, req.BaseArtifactID)
		emit.fail(StepAnalyzing, err)
		return nil, err
	}

	dataInfo := ""
	if req.Dataset != nil {
		dataInfo = req.Dataset.PromptInfo()
		emit.step(StepAnalyzing, fmt.Sprintf("Analyzing data: %s", req.Dataset.Summary()))
	}

	emit.step(StepGenerating, fmt.Sprintf("Revising %s v%d", base.Slug, base.Version))
	code, err := o.collaborator.ReviseWidgetCode(ctx, provider.ReviseRequest{
		Instruction: req.Instruction,
		BaseCode:    base.Code,
		DataInfo:    dataInfo,
		Exports:     req.Exports,
		Imports:     req.Imports,
		Theme:       req.Theme,
	}, func(chunk string) {
		emit.chunk(StepGenerating, chunk)
	})
	if err != nil {
		logging.GenerationError("revision failed: %v", err)
		emit.fail(StepGenerating, err)
		return nil, err
	}

	logRevisionDiff(base, code)

	code, result, attempts := o.repairLoop(ctx, code, req.Exports, req.Imports, dataInfo, emit)

	key := store.KeyInputs{
		Description:      req.Instruction,
		DataVariableName: base.DataVariableName,
		DataShape:        base.DataShape,
		Contract:         store.Contract{Exports: req.Exports, Imports: req.Imports},
		Theme:            req.Theme,
	}
	if req.Dataset != nil {
		key.DataVariableName = req.Dataset.VariableName
		key.DataShape = store.DataShape(req.Dataset.Shape)
	}

	artifact, err := o.persist(key, code, base)
	if err != nil {
		emit.fail(StepValidating, err)
		return nil, err
	}

	outcome := &Outcome{
		Artifact:       artifact,
		Clean:          len(result.issues) == 0,
		Issues:         result.issues,
		Warnings:       result.warnings,
		RepairAttempts: attempts,
	}
	emit.complete(fmt.Sprintf("Widget saved: %s v%d", artifact.Slug, artifact.Version))
	return outcome, nil
}

// FixRuntimeError repairs an existing artifact given a runtime error
// reported by the host, producing a new linked version.
func (o *Orchestrator) FixRuntimeError(ctx context.Context, artifactID, errorMessage string, onEvent EventFunc) (*Outcome, error) {
	emit := onEvent

	base, err := o.artifacts.LoadByID(artifactID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		err := fmt.Errorf("%w: artifact %s not found", ErrStaleReference, artifactID)
		emit.fail(StepAnalyzing, err)
		return nil, err
	}

	emit.step(StepRepairing, fmt.Sprintf("Fixing runtime error in %s v%d", base.Slug, base.Version))
	code, err := o.collaborator.FixCodeError(ctx, provider.FixRequest{
		Code:         base.Code,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		logging.GenerationError("runtime fix failed: %v", err)
		emit.fail(StepRepairing, err)
		return nil, err
	}

	code, result, attempts := o.repairLoop(ctx, code, nil, nil, "", emit)

	key := store.KeyInputs{
		Description:      base.SourceDescription,
		DataVariableName: base.DataVariableName,
		DataShape:        base.DataShape,
		Theme:            "",
	}
	artifact, err := o.persist(key, code, base)
	if err != nil {
		emit.fail(StepValidating, err)
		return nil, err
	}

	outcome := &Outcome{
		Artifact:       artifact,
		Clean:          len(result.issues) == 0,
		Issues:         result.issues,
		Warnings:       result.warnings,
		RepairAttempts: attempts,
	}
	emit.complete(fmt.Sprintf("Widget saved: %s v%d", artifact.Slug, artifact.Version))
	return outcome, nil
}

type checkResult struct {
	issues   []string
	warnings []string
}

// check runs structural validation and the smoke test, pooling blocking
// issues from both.
func check(code string, exports, imports map[string]string) checkResult {
	vr := validate.Validate(code, exports, imports)
	sr := validate.Smoke(code)

	issues := append([]string{}, vr.Issues...)
	issues = append(issues, sr.Issues...)
	return checkResult{issues: issues, warnings: vr.Warnings}
}

// repairLoop validates code and asks the collaborator to repair it until
// it is clean or the budget is spent. The last code seen is always
// returned; a failing repair call downgrades to best-effort acceptance
// rather than aborting the run.
func (o *Orchestrator) repairLoop(ctx context.Context, code string, exports, imports map[string]string, dataInfo string, emit EventFunc) (string, checkResult, int) {
	attempts := 0
	for {
		emit.step(StepValidating, "Validating widget code")
		result := check(code, exports, imports)
		if len(result.issues) == 0 {
			return code, result, attempts
		}
		if attempts >= o.maxRepairAttempts {
			logging.Generation("repair budget exhausted after %d attempts; accepting with %d issues", attempts, len(result.issues))
			return code, result, attempts
		}
		attempts++

		fixReq := provider.FixRequest{Code: code, DataInfo: dataInfo}
		if len(result.issues) == 1 && isRuntimeShaped(result.issues[0]) {
			emit.step(StepRepairing, fmt.Sprintf("Targeted fix (attempt %d/%d): %s", attempts, o.maxRepairAttempts, result.issues[0]))
			fixReq.ErrorMessage = result.issues[0]
		} else {
			emit.step(StepRepairing, fmt.Sprintf("Repairing %d issues (attempt %d/%d)", len(result.issues), attempts, o.maxRepairAttempts))
			fixReq.ErrorMessage = "Validation found the following problems:\n- " + strings.Join(result.issues, "\n- ")
		}

		fixed, err := o.collaborator.FixCodeError(ctx, fixReq)
		if err != nil {
			logging.GenerationError("repair attempt %d failed: %v; accepting current code", attempts, err)
			return code, result, attempts
		}
		code = fixed
	}
}

// isRuntimeShaped reports whether an issue reads like a load-time failure
// rather than a contract violation. Those get the error text verbatim so
// the collaborator can make a surgical fix.
func isRuntimeShaped(issue string) bool {
	for _, marker := range []string{"unterminated", "unmatched", "mismatched", "unclosed", "await", "default exports"} {
		if strings.Contains(issue, marker) {
			return true
		}
	}
	return false
}

// persist saves code and links lineage in two phases. A failed link is
// logged but does not undo the save.
func (o *Orchestrator) persist(key store.KeyInputs, code string, base *store.Artifact) (*store.Artifact, error) {
	saveReq := store.SaveRequest{
		Key:     key,
		Code:    code,
		ModelID: o.collaborator.Model(),
	}
	artifact, err := o.artifacts.Save(saveReq)
	if err != nil {
		return nil, err
	}
	if base != nil {
		if err := o.artifacts.SetBaseArtifact(artifact.ID, base.ID); err != nil {
			logging.StoreWarn("lineage link failed for %s -> %s: %v", artifact.ID, base.ID, err)
		} else {
			artifact.BaseArtifactID = base.ID
		}
	}
	return artifact, nil
}

func (o *Orchestrator) keyInputs(req GenerateRequest) store.KeyInputs {
	key := store.KeyInputs{
		Description: req.Description,
		Contract:    store.Contract{Exports: req.Exports, Imports: req.Imports},
		Theme:       req.Theme,
	}
	if req.Dataset != nil {
		key.DataVariableName = req.Dataset.VariableName
		key.DataShape = store.DataShape(req.Dataset.Shape)
	}
	return key
}

// logRevisionDiff writes a unified diff of base vs revised code to the
// generation log.
func logRevisionDiff(base *store.Artifact, revised string) {
	if !logging.IsDebugMode() {
		return
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(base.Code),
		B:        difflib.SplitLines(revised),
		FromFile: fmt.Sprintf("%s (v%d)", base.Slug, base.Version),
		ToFile:   "revised",
		Context:  2,
	})
	if err != nil {
		return
	}
	logging.GenerationDebug("revision diff for %s:\n%s", base.ID, diff)
}
