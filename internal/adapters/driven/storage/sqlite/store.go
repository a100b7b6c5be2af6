package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/brightpath-labs/tutorcore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
)

// Store is a SQLite-based storage that provides access to metadata store
// interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.tutorcore/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".tutorcore", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// VersionStore returns a VersionStore interface backed by this store.
func (s *Store) VersionStore() driven.VersionStore {
	return &versionStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Version Store ====================

// versionStore implements driven.VersionStore.
type versionStore struct {
	store *Store
}

var _ driven.VersionStore = (*versionStore)(nil)

// Save stores or replaces the version for its document. The version row and
// its unit manifest are written in one transaction, so readers never see a
// version with a partial manifest.
func (s *versionStore) Save(ctx context.Context, version domain.DocumentVersion) error {
	if version.DocumentID == "" {
		return domain.ErrInvalidInput
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_versions (document_id, version_id, board, grade, subject, number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			version_id = excluded.version_id,
			board = excluded.board,
			grade = excluded.grade,
			subject = excluded.subject,
			number = excluded.number,
			created_at = excluded.created_at
	`, version.DocumentID, version.ID, version.Board, version.Grade, version.Subject,
		version.Number, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving version: %w", err)
	}

	// Replace the unit manifest wholesale
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM version_units WHERE document_id = ?", version.DocumentID); err != nil {
		return fmt.Errorf("clearing version units: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO version_units
			(document_id, position, unit_id, identity_key, content_hash,
			 chapter_id, section_title, page_number, unit_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, unit := range version.Units {
		if _, err := stmt.ExecContext(ctx, version.DocumentID, i, unit.UnitID,
			unit.IdentityKey, unit.ContentHash, unit.ChapterID, unit.SectionTitle,
			unit.PageNumber, string(unit.Type)); err != nil {
			return fmt.Errorf("saving version unit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves the current version of a document.
func (s *versionStore) Get(ctx context.Context, documentID string) (*domain.DocumentVersion, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, version_id, board, grade, subject, number, created_at
		FROM document_versions WHERE document_id = ?
	`, documentID)

	version, err := scanVersion(row)
	if err != nil {
		return nil, err
	}

	units, err := s.loadUnits(ctx, documentID)
	if err != nil {
		return nil, err
	}
	version.Units = units

	return version, nil
}

// Delete removes the version record for a document.
func (s *versionStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM document_versions WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting version: %w", err)
	}
	return nil
}

// List returns the current version of every ingested document.
func (s *versionStore) List(ctx context.Context) ([]domain.DocumentVersion, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, version_id, board, grade, subject, number, created_at
		FROM document_versions ORDER BY document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DocumentVersion //nolint:prealloc // size unknown from query
	for rows.Next() {
		var version domain.DocumentVersion
		var createdAt sql.NullTime
		if err := rows.Scan(&version.DocumentID, &version.ID, &version.Board,
			&version.Grade, &version.Subject, &version.Number, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		if createdAt.Valid {
			version.CreatedAt = createdAt.Time
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}

	for i := range versions {
		units, err := s.loadUnits(ctx, versions[i].DocumentID)
		if err != nil {
			return nil, err
		}
		versions[i].Units = units
	}

	return versions, nil
}

// loadUnits reads the unit manifest of a version in reading order.
func (s *versionStore) loadUnits(ctx context.Context, documentID string) ([]domain.UnitRef, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT unit_id, identity_key, content_hash, chapter_id, section_title, page_number, unit_type
		FROM version_units WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying version units: %w", err)
	}
	defer rows.Close()

	var units []domain.UnitRef //nolint:prealloc // size unknown from query
	for rows.Next() {
		var unit domain.UnitRef
		var unitType string
		if err := rows.Scan(&unit.UnitID, &unit.IdentityKey, &unit.ContentHash,
			&unit.ChapterID, &unit.SectionTitle, &unit.PageNumber, &unitType); err != nil {
			return nil, fmt.Errorf("scanning version unit: %w", err)
		}
		unit.Type = domain.UnitType(unitType)
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating version units: %w", err)
	}

	return units, nil
}

// scanVersion scans a single version row.
func scanVersion(row *sql.Row) (*domain.DocumentVersion, error) {
	var version domain.DocumentVersion
	var createdAt sql.NullTime

	if err := row.Scan(&version.DocumentID, &version.ID, &version.Board,
		&version.Grade, &version.Subject, &version.Number, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning version: %w", err)
	}
	if createdAt.Valid {
		version.CreatedAt = createdAt.Time
	}

	return &version, nil
}
