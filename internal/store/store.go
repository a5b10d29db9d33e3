package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"widgetsmith/internal/logging"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ArtifactStore persists widget artifacts: metadata in SQLite, code
// payloads on disk.
//
// Storage layout under the workspace root:
//   .widgetsmith/artifacts.db          index
//   .widgetsmith/widgets/<file>.js     payloads
type ArtifactStore struct {
	db         *sql.DB
	mu         sync.RWMutex
	dbPath     string
	widgetsDir string
}

// SaveRequest carries everything needed to persist a new artifact version.
type SaveRequest struct {
	Key            KeyInputs
	Code           string
	ModelID        string
	BaseArtifactID string
}

// NewArtifactStore opens (or creates) the store rooted at the given
// workspace directory.
func NewArtifactStore(workspace string) (*ArtifactStore, error) {
	baseDir := filepath.Join(workspace, ".widgetsmith")
	dbPath := filepath.Join(baseDir, "artifacts.db")
	widgetsDir := filepath.Join(baseDir, "widgets")

	logging.StoreDebug("Initializing ArtifactStore at path: %s", dbPath)

	if err := os.MkdirAll(widgetsDir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create widgets directory %s: %v", widgetsDir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open ArtifactStore database at %s: %v", dbPath, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	db.SetMaxOpenConns(1)

	store := &ArtifactStore{db: db, dbPath: dbPath, widgetsDir: widgetsDir}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize ArtifactStore schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("ArtifactStore initialized at %s", dbPath)
	return store, nil
}

// initialize creates the database schema.
func (s *ArtifactStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		short_hash TEXT NOT NULL,
		version INTEGER NOT NULL,
		source_description TEXT NOT NULL,
		data_variable_name TEXT,
		data_rows INTEGER NOT NULL DEFAULT 0,
		data_cols INTEGER NOT NULL DEFAULT 0,
		exports_signature TEXT,
		imports_signature TEXT,
		theme_signature TEXT,
		model_id TEXT,
		base_artifact_id TEXT,
		component_names TEXT,
		file_name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_hash ON artifacts(content_hash);
	CREATE INDEX IF NOT EXISTS idx_artifacts_slug ON artifacts(slug);
	CREATE INDEX IF NOT EXISTS idx_artifacts_base ON artifacts(base_artifact_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Lookup finds the newest artifact matching a cache key. Returns (nil, nil)
// on a miss. A matching index row whose payload file is gone is logged and
// treated as a miss, so a corrupted store degrades to regeneration.
func (s *ArtifactStore) Lookup(key KeyInputs) (*Artifact, error) {
	hash := CacheKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(s.selectClause()+`
		FROM artifacts WHERE content_hash = ? ORDER BY version DESC LIMIT 1`, hash)

	artifact, err := s.scanArtifact(row)
	if err == sql.ErrNoRows {
		logging.StoreDebug("cache miss for hash %s", ShortHash(hash))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}

	code, err := os.ReadFile(filepath.Join(s.widgetsDir, artifact.FileName))
	if err != nil {
		logging.StoreWarn("payload missing for %s (%s); treating as cache miss", artifact.ID, artifact.FileName)
		return nil, nil
	}
	artifact.Code = string(code)

	if _, err := s.db.Exec(`UPDATE artifacts SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?`, artifact.ID); err != nil {
		logging.StoreWarn("failed to touch last_used_at for %s: %v", artifact.ID, err)
	}

	logging.Store("cache hit: %s (%s v%d)", artifact.ID, artifact.Slug, artifact.Version)
	return artifact, nil
}

// Save persists a new artifact version. Saves are never deduplicated:
// saving the same key twice appends version N+1.
func (s *ArtifactStore) Save(req SaveRequest) (*Artifact, error) {
	timer := logging.StartTimer(logging.CategoryStore, "artifact save")
	defer timer.Stop()

	hash := CacheKey(req.Key)
	short := ShortHash(hash)
	slug := Slug(req.Key.Description, req.Key.DataVariableName)

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxVersion sql.NullInt64
	row := s.db.QueryRow(`SELECT MAX(version) FROM artifacts WHERE slug = ?`, slug)
	if err := row.Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	version := int(maxVersion.Int64) + 1

	artifact := &Artifact{
		ID:                fmt.Sprintf("%s-v%d", short, version),
		Slug:              slug,
		ContentHash:       hash,
		ShortHash:         short,
		Version:           version,
		SourceDescription: req.Key.Description,
		DataVariableName:  req.Key.DataVariableName,
		DataShape:         req.Key.DataShape,
		ExportsSignature:  ContractSignature(req.Key.Contract.Exports),
		ImportsSignature:  ContractSignature(req.Key.Contract.Imports),
		ThemeSignature:    ThemeSignature(req.Key.Theme),
		ModelID:           req.ModelID,
		BaseArtifactID:    req.BaseArtifactID,
		ComponentNames:    ExtractComponentNames(req.Code),
		FileName:          FileNameFor(slug, short, version),
		CreatedAt:         time.Now(),
		LastUsedAt:        time.Now(),
		Code:              req.Code,
	}

	payloadPath := filepath.Join(s.widgetsDir, artifact.FileName)
	if err := os.WriteFile(payloadPath, []byte(req.Code), 0644); err != nil {
		return nil, fmt.Errorf("failed to write payload: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO artifacts
		(id, slug, content_hash, short_hash, version, source_description,
		 data_variable_name, data_rows, data_cols, exports_signature,
		 imports_signature, theme_signature, model_id, base_artifact_id,
		 component_names, file_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.Slug, artifact.ContentHash, artifact.ShortHash,
		artifact.Version, artifact.SourceDescription, artifact.DataVariableName,
		artifact.DataShape.Rows, artifact.DataShape.Cols,
		artifact.ExportsSignature, artifact.ImportsSignature, artifact.ThemeSignature,
		artifact.ModelID, nullable(artifact.BaseArtifactID),
		strings.Join(artifact.ComponentNames, ","), artifact.FileName,
	)
	if err != nil {
		os.Remove(payloadPath)
		logging.Get(logging.CategoryStore).Error("Failed to store artifact %s: %v", artifact.ID, err)
		return nil, fmt.Errorf("failed to insert artifact: %w", err)
	}

	logging.Store("saved artifact %s (%s v%d, %d bytes)", artifact.ID, slug, version, len(req.Code))
	return artifact, nil
}

// SetBaseArtifact links an artifact to its lineage parent. Saving and
// linking are two phases so a failed link never blocks the save.
func (s *ArtifactStore) SetBaseArtifact(id, baseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE artifacts SET base_artifact_id = ? WHERE id = ?`, baseID, id)
	if err != nil {
		return fmt.Errorf("failed to link artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("artifact %s not found", id)
	}
	logging.StoreDebug("linked %s -> base %s", id, baseID)
	return nil
}

// LoadByID fetches an artifact and its payload by ID. Returns (nil, nil)
// when the ID is unknown or the payload file is gone.
func (s *ArtifactStore) LoadByID(id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(s.selectClause()+` FROM artifacts WHERE id = ?`, id)
	artifact, err := s.scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}

	code, err := os.ReadFile(filepath.Join(s.widgetsDir, artifact.FileName))
	if err != nil {
		logging.StoreWarn("payload missing for %s; treating as not found", artifact.ID)
		return nil, nil
	}
	artifact.Code = string(code)
	return artifact, nil
}

// LoadExternal reads widget code from an arbitrary file and wraps it in a
// synthetic artifact. The artifact is not persisted to the index.
func (s *ArtifactStore) LoadExternal(path string) (*Artifact, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read external widget: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	artifact := &Artifact{
		ID:             "ext-" + uuid.NewString()[:8],
		Slug:           stem,
		Version:        1,
		ComponentNames: ExtractComponentNames(string(code)),
		FileName:       filepath.Base(path),
		CreatedAt:      time.Now(),
		LastUsedAt:     time.Now(),
		Code:           string(code),
	}

	logging.Store("loaded external widget %s from %s (%d components)", artifact.ID, path, len(artifact.ComponentNames))
	return artifact, nil
}

// List returns artifact metadata ordered by recency. Payloads are not
// loaded. limit <= 0 means no limit.
func (s *ArtifactStore) List(limit int) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := s.selectClause() + ` FROM artifacts ORDER BY created_at DESC, version DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanArtifacts(rows)
}

// VersionsOf returns all versions sharing a slug, oldest first.
func (s *ArtifactStore) VersionsOf(slug string) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(s.selectClause()+`
		FROM artifacts WHERE slug = ? ORDER BY version ASC`, slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanArtifacts(rows)
}

// Clear removes all artifacts and their payload files.
func (s *ArtifactStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT file_name FROM artifacts`)
	if err != nil {
		return err
	}
	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err == nil {
			files = append(files, f)
		}
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	for _, f := range files {
		os.Remove(filepath.Join(s.widgetsDir, f))
	}

	logging.Store("cleared %d artifacts", len(files))
	return nil
}

// ClearByID removes a single artifact and its payload file. Lineage rows
// referencing it are left in place; their base becomes a dangling ID that
// resolves to a stale reference on revision.
func (s *ArtifactStore) ClearByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fileName string
	row := s.db.QueryRow(`SELECT file_name FROM artifacts WHERE id = ?`, id)
	if err := row.Scan(&fileName); err == sql.ErrNoRows {
		return fmt.Errorf("artifact %s not found", id)
	} else if err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	os.Remove(filepath.Join(s.widgetsDir, fileName))

	logging.Store("cleared artifact %s", id)
	return nil
}

// WidgetPath returns the payload path for an artifact file name.
func (s *ArtifactStore) WidgetPath(fileName string) string {
	return filepath.Join(s.widgetsDir, fileName)
}

// Close closes the database connection.
func (s *ArtifactStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		logging.Store("Closing ArtifactStore at %s", s.dbPath)
		return s.db.Close()
	}
	return nil
}

func (s *ArtifactStore) selectClause() string {
	return `SELECT id, slug, content_hash, short_hash, version, source_description,
	       data_variable_name, data_rows, data_cols, exports_signature,
	       imports_signature, theme_signature, model_id, base_artifact_id,
	       component_names, file_name, created_at, last_used_at`
}

// scanArtifact scans a single row into an Artifact.
func (s *ArtifactStore) scanArtifact(row *sql.Row) (*Artifact, error) {
	var a Artifact
	var baseID sql.NullString
	var components string
	var createdAt, lastUsedAt string

	err := row.Scan(
		&a.ID, &a.Slug, &a.ContentHash, &a.ShortHash, &a.Version,
		&a.SourceDescription, &a.DataVariableName, &a.DataShape.Rows,
		&a.DataShape.Cols, &a.ExportsSignature, &a.ImportsSignature,
		&a.ThemeSignature, &a.ModelID, &baseID, &components, &a.FileName,
		&createdAt, &lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	a.BaseArtifactID = baseID.String
	if components != "" {
		a.ComponentNames = strings.Split(components, ",")
	}
	a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	a.LastUsedAt, _ = time.Parse("2006-01-02 15:04:05", lastUsedAt)

	return &a, nil
}

// scanArtifacts scans multiple rows into an Artifact slice.
func (s *ArtifactStore) scanArtifacts(rows *sql.Rows) ([]Artifact, error) {
	var artifacts []Artifact

	for rows.Next() {
		var a Artifact
		var baseID sql.NullString
		var components string
		var createdAt, lastUsedAt string

		err := rows.Scan(
			&a.ID, &a.Slug, &a.ContentHash, &a.ShortHash, &a.Version,
			&a.SourceDescription, &a.DataVariableName, &a.DataShape.Rows,
			&a.DataShape.Cols, &a.ExportsSignature, &a.ImportsSignature,
			&a.ThemeSignature, &a.ModelID, &baseID, &components, &a.FileName,
			&createdAt, &lastUsedAt,
		)
		if err != nil {
			continue
		}

		a.BaseArtifactID = baseID.String
		if components != "" {
			a.ComponentNames = strings.Split(components, ",")
		}
		a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		a.LastUsedAt, _ = time.Parse("2006-01-02 15:04:05", lastUsedAt)

		artifacts = append(artifacts, a)
	}

	return artifacts, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
