package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"widgetsmith/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists audit records to SQLite.
//
// Storage location: .widgetsmith/audits.db
//
// Concerns, line hashes, and open questions are stored as JSON columns:
// records are loaded whole or not at all, and the reconciler works on full
// records, so relational decomposition buys nothing here.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore opens (or creates) the audit store rooted at the workspace.
func NewStore(workspace string) (*Store, error) {
	dbPath := filepath.Join(workspace, ".widgetsmith", "audits.db")
	logging.AuditDebug("Initializing audit Store at path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("Failed to open audit database at %s: %v", dbPath, err)
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

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Audit("audit Store initialized at %s", dbPath)
	return store, nil
}

// initialize creates the database schema.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_records (
		audit_id TEXT PRIMARY KEY,
		artifact_id TEXT NOT NULL,
		level TEXT NOT NULL,
		code_hash TEXT NOT NULL,
		line_hashes TEXT NOT NULL,
		concerns TEXT NOT NULL,
		open_questions TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_records_artifact ON audit_records(artifact_id, level, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append persists a new audit record. Records are never updated in place.
func (s *Store) Append(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lineHashes, err := json.Marshal(encodeLineHashes(rec.LineHashes))
	if err != nil {
		return fmt.Errorf("failed to marshal line hashes: %w", err)
	}
	concerns, err := json.Marshal(rec.Concerns)
	if err != nil {
		return fmt.Errorf("failed to marshal concerns: %w", err)
	}
	questions, err := json.Marshal(rec.OpenQuestions)
	if err != nil {
		return fmt.Errorf("failed to marshal open questions: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_records
		(audit_id, artifact_id, level, code_hash, line_hashes, concerns, open_questions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.AuditID, rec.ArtifactID, rec.Level, rec.CodeHash,
		string(lineHashes), string(concerns), string(questions),
	)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("Failed to store audit record %s: %v", rec.AuditID, err)
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	logging.Audit("appended audit record %s (artifact=%s level=%s concerns=%d)",
		rec.AuditID, rec.ArtifactID, rec.Level, len(rec.Concerns))
	return nil
}

// LatestFor returns the most recent record for an artifact at a level, or
// (nil, nil) when none exists. A record that fails to decode is logged and
// treated as absent so a corrupted row degrades to a full re-audit.
func (s *Store) LatestFor(artifactID, level string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT audit_id, artifact_id, level, code_hash, line_hashes, concerns, open_questions, created_at
		FROM audit_records
		WHERE artifact_id = ? AND level = ?
		ORDER BY created_at DESC, audit_id DESC LIMIT 1`, artifactID, level)

	rec, err := s.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logging.AuditWarn("unreadable audit record for %s/%s: %v; treating as absent", artifactID, level, err)
		return nil, nil
	}
	return rec, nil
}

// History returns all records for an artifact at a level, newest first.
func (s *Store) History(artifactID, level string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT audit_id, artifact_id, level, code_hash, line_hashes, concerns, open_questions, created_at
		FROM audit_records
		WHERE artifact_id = ? AND level = ?
		ORDER BY created_at DESC, audit_id DESC`, artifactID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                             Record
			lineHashes, concerns, questions string
			createdAt                       string
		)
		if err := rows.Scan(&rec.AuditID, &rec.ArtifactID, &rec.Level, &rec.CodeHash,
			&lineHashes, &concerns, &questions, &createdAt); err != nil {
			continue
		}
		if err := decodeRecordFields(&rec, lineHashes, concerns, questions, createdAt); err != nil {
			logging.AuditWarn("skipping unreadable audit record %s: %v", rec.AuditID, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear removes all audit records.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM audit_records`); err != nil {
		return fmt.Errorf("failed to clear audit records: %w", err)
	}
	logging.Audit("cleared all audit records")
	return nil
}

// ClearByArtifact removes the audit history of one artifact.
func (s *Store) ClearByArtifact(artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM audit_records WHERE artifact_id = ?`, artifactID); err != nil {
		return fmt.Errorf("failed to clear audit records: %w", err)
	}
	logging.Audit("cleared audit records for %s", artifactID)
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		logging.Audit("Closing audit Store at %s", s.dbPath)
		return s.db.Close()
	}
	return nil
}

func (s *Store) scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec                             Record
		lineHashes, concerns, questions string
		createdAt                       string
	)
	err := row.Scan(&rec.AuditID, &rec.ArtifactID, &rec.Level, &rec.CodeHash,
		&lineHashes, &concerns, &questions, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := decodeRecordFields(&rec, lineHashes, concerns, questions, createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeRecordFields(rec *Record, lineHashes, concerns, questions, createdAt string) error {
	var encoded map[string]string
	if err := json.Unmarshal([]byte(lineHashes), &encoded); err != nil {
		return fmt.Errorf("bad line_hashes: %w", err)
	}
	rec.LineHashes = decodeLineHashes(encoded)

	if err := json.Unmarshal([]byte(concerns), &rec.Concerns); err != nil {
		return fmt.Errorf("bad concerns: %w", err)
	}
	if questions != "" && questions != "null" {
		if err := json.Unmarshal([]byte(questions), &rec.OpenQuestions); err != nil {
			return fmt.Errorf("bad open_questions: %w", err)
		}
	}
	rec.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	return nil
}

// JSON object keys must be strings, so line numbers round-trip through
// string keys.
func encodeLineHashes(m map[int]string) map[string]string {
	out := make(map[string]string, len(m))
	for line, hash := range m {
		out[strconv.Itoa(line)] = hash
	}
	return out
}

func decodeLineHashes(m map[string]string) map[int]string {
	out := make(map[int]string, len(m))
	for key, hash := range m {
		if line, err := strconv.Atoi(key); err == nil {
			out[line] = hash
		}
	}
	return out
}
