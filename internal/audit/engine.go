package audit

import (
	"context"
	"fmt"
	"time"

	"widgetsmith/internal/logging"
	"widgetsmith/internal/provider"
	"widgetsmith/internal/store"

	"github.com/google/uuid"
)

// Engine runs audits, reusing prior findings where the code has not moved
// underneath them.
type Engine struct {
	store        *Store
	collaborator provider.Collaborator
}

// NewEngine builds an audit engine over a record store and a collaborator.
func NewEngine(recordStore *Store, collaborator provider.Collaborator) *Engine {
	return &Engine{store: recordStore, collaborator: collaborator}
}

// RunRequest describes one audit run.
type RunRequest struct {
	Artifact *store.Artifact
	Level    string // LevelFast or LevelFull
	Reuse    bool   // false forces a full fresh audit
	DataInfo string // optional dataset description for the prompt
}

// RunResult is the outcome of an audit run.
type RunResult struct {
	Record         *Record
	ReusedVerbatim bool  // prior record returned unchanged, no LLM call
	ChangedLines   []int // non-nil only for incremental re-audits
	ReusedConcerns int
	FreshConcerns  int
}

// Run audits an artifact. With Reuse set and unchanged code, the prior
// record is returned verbatim without touching the collaborator. With
// changed code, only the changed lines are re-examined and the results are
// merged with still-fresh prior concerns into a new appended record.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Artifact == nil || req.Artifact.Code == "" {
		return nil, fmt.Errorf("artifact with code required")
	}
	level := req.Level
	if level != LevelFull {
		level = LevelFast
	}

	timer := logging.StartTimer(logging.CategoryAudit, fmt.Sprintf("audit %s (%s)", req.Artifact.ID, level))
	defer timer.StopWithInfo()

	curHash := CodeHash(req.Artifact.Code)
	curLines := LineHashes(req.Artifact.Code)

	var prior *Record
	if req.Reuse {
		var err error
		prior, err = e.store.LatestFor(req.Artifact.ID, level)
		if err != nil {
			return nil, err
		}
		// A freshly revised artifact has no history of its own yet; fall
		// back to its lineage parent so concerns can carry across versions.
		if prior == nil && req.Artifact.BaseArtifactID != "" {
			prior, err = e.store.LatestFor(req.Artifact.BaseArtifactID, level)
			if err != nil {
				return nil, err
			}
		}
	}

	if prior != nil && prior.CodeHash == curHash {
		logging.Audit("audit reuse: %s unchanged, returning record %s verbatim", req.Artifact.ID, prior.AuditID)
		return &RunResult{
			Record:         prior,
			ReusedVerbatim: true,
			ReusedConcerns: len(prior.Concerns),
		}, nil
	}

	auditReq := provider.AuditRequest{
		Code:        req.Artifact.Code,
		Description: req.Artifact.SourceDescription,
		DataInfo:    req.DataInfo,
		Level:       level,
	}

	var (
		reused       []Concern
		changedLines []int
	)
	if prior != nil {
		for _, c := range prior.Concerns {
			if IsFresh(&c, prior.CodeHash, curHash, curLines) {
				reused = append(reused, c)
			}
		}
		changedLines = ChangedLines(prior.LineHashes, curLines)
		auditReq.ChangedLines = changedLines
		logging.Audit("incremental audit: %s changed_lines=%d reusable_concerns=%d/%d",
			req.Artifact.ID, len(changedLines), len(reused), len(prior.Concerns))
	}

	raw, err := e.collaborator.GenerateAuditReport(ctx, auditReq)
	if err != nil {
		return nil, err
	}
	freshConcerns, freshQuestions, err := ParseReport(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad audit report: %v", provider.ErrCollaborator, err)
	}

	var concerns []Concern
	var questions []string
	if prior != nil {
		concerns = Merge(reused, freshConcerns, changedLines, curLines)
		questions = MergeOpenQuestions(prior.OpenQuestions, freshQuestions)
	} else {
		concerns = make([]Concern, 0, len(freshConcerns))
		for _, c := range freshConcerns {
			c.LineHashes = snapshotLines(c.Location, curLines)
			concerns = append(concerns, c)
		}
		questions = MergeOpenQuestions(nil, freshQuestions)
	}
	SortConcerns(concerns)

	rec := &Record{
		AuditID:       uuid.NewString(),
		ArtifactID:    req.Artifact.ID,
		Level:         level,
		CodeHash:      curHash,
		LineHashes:    curLines,
		Concerns:      concerns,
		OpenQuestions: questions,
		CreatedAt:     time.Now(),
	}
	if err := e.store.Append(rec); err != nil {
		return nil, err
	}

	return &RunResult{
		Record:         rec,
		ChangedLines:   changedLines,
		ReusedConcerns: len(reused),
		FreshConcerns:  len(concerns) - len(reused),
	}, nil
}
