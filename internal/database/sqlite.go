package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Live-to-Role/grimoire/internal/database/migrations"
	"github.com/Live-to-Role/grimoire/internal/library"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the library.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite database at the given path.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pool connection to :memory: gets its own empty database, so the
	// in-memory case is pinned to a single connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// SQLite defaults foreign keys to OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Tracked file operations

const fileColumns = "id, content_hash, file_path, file_size, folder_id, title, created_at"

func scanFile(scanner interface{ Scan(dest ...any) error }) (*library.TrackedFile, error) {
	var f library.TrackedFile
	var folderID sql.NullString
	err := scanner.Scan(&f.ID, &f.ContentHash, &f.FilePath, &f.FileSize, &folderID, &f.Title, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.FolderID = folderID.String
	return &f, nil
}

func (s *SQLiteStore) ListFiles() ([]*library.TrackedFile, error) {
	rows, err := s.db.Query("SELECT " + fileColumns + " FROM products ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []*library.TrackedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) FindFileByPath(path string) (*library.TrackedFile, error) {
	row := s.db.QueryRow("SELECT "+fileColumns+" FROM products WHERE file_path = ?", path)
	f, err := scanFile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file by path: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) FindFilesByIDs(ids []string) ([]*library.TrackedFile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query("SELECT "+fileColumns+" FROM products WHERE id IN ("+placeholders+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("finding files by ids: %w", err)
	}
	defer rows.Close()

	var files []*library.TrackedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) InsertFile(f *library.TrackedFile) error {
	_, err := s.db.Exec(
		"INSERT INTO products (id, content_hash, file_path, file_size, folder_id, title, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.ContentHash, f.FilePath, f.FileSize, nullString(f.FolderID), f.Title, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateFile(f *library.TrackedFile) error {
	_, err := s.db.Exec(
		"UPDATE products SET content_hash = ?, file_size = ?, folder_id = ?, title = ? WHERE id = ?",
		f.ContentHash, f.FileSize, nullString(f.FolderID), f.Title, f.ID,
	)
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFiles(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM products WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("deleting file %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Folder operations

const folderColumns = "id, path, label, enabled, is_source_of_truth, created_at"

func scanFolder(scanner interface{ Scan(dest ...any) error }) (*library.WatchedFolder, error) {
	var f library.WatchedFolder
	err := scanner.Scan(&f.ID, &f.Path, &f.Label, &f.Enabled, &f.IsSourceOfTruth, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) ListFolders() ([]*library.WatchedFolder, error) {
	rows, err := s.db.Query("SELECT " + folderColumns + " FROM folders ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()

	var folders []*library.WatchedFolder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning folder row: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (s *SQLiteStore) FindFolder(id string) (*library.WatchedFolder, error) {
	row := s.db.QueryRow("SELECT "+folderColumns+" FROM folders WHERE id = ?", id)
	f, err := scanFolder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("finding folder: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) FindFolderByPath(path string) (*library.WatchedFolder, error) {
	row := s.db.QueryRow("SELECT "+folderColumns+" FROM folders WHERE path = ?", path)
	f, err := scanFolder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("finding folder by path: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) CreateFolder(f *library.WatchedFolder) error {
	_, err := s.db.Exec(
		"INSERT INTO folders (id, path, label, enabled, is_source_of_truth, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		f.ID, f.Path, f.Label, f.Enabled, f.IsSourceOfTruth, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting folder: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateFolder(f *library.WatchedFolder) error {
	_, err := s.db.Exec(
		"UPDATE folders SET label = ?, enabled = ? WHERE id = ?",
		f.Label, f.Enabled, f.ID,
	)
	if err != nil {
		return fmt.Errorf("updating folder: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFolder(id string) error {
	_, err := s.db.Exec("DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	return nil
}

// SetSourceOfTruth marks one folder as the source of truth. The clear and
// set run in a single transaction so at most one folder ever carries the
// flag, regardless of client behavior.
func (s *SQLiteStore) SetSourceOfTruth(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE folders SET is_source_of_truth = 0"); err != nil {
		return fmt.Errorf("clearing source of truth: %w", err)
	}
	result, err := tx.Exec("UPDATE folders SET is_source_of_truth = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("setting source of truth: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: folder %s", library.ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ClearSourceOfTruth() error {
	if _, err := s.db.Exec("UPDATE folders SET is_source_of_truth = 0"); err != nil {
		return fmt.Errorf("clearing source of truth: %w", err)
	}
	return nil
}

// Exclusion rule operations

const ruleColumns = "id, rule_type, pattern, enabled, priority, is_default, files_excluded, last_matched_at, created_at"

func scanRule(scanner interface{ Scan(dest ...any) error }) (*library.ExclusionRule, error) {
	var r library.ExclusionRule
	var lastMatched sql.NullTime
	err := scanner.Scan(&r.ID, &r.RuleType, &r.Pattern, &r.Enabled, &r.Priority, &r.IsDefault, &r.FilesExcluded, &lastMatched, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastMatched.Valid {
		t := lastMatched.Time
		r.LastMatchedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) ListRules() ([]*library.ExclusionRule, error) {
	rows, err := s.db.Query("SELECT " + ruleColumns + " FROM exclusion_rules ORDER BY priority DESC, created_at")
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []*library.ExclusionRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *SQLiteStore) FindRule(id string) (*library.ExclusionRule, error) {
	row := s.db.QueryRow("SELECT "+ruleColumns+" FROM exclusion_rules WHERE id = ?", id)
	r, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("finding rule: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) CreateRule(r *library.ExclusionRule) error {
	_, err := s.db.Exec(
		"INSERT INTO exclusion_rules (id, rule_type, pattern, enabled, priority, is_default, files_excluded, last_matched_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, string(r.RuleType), r.Pattern, r.Enabled, r.Priority, r.IsDefault, r.FilesExcluded, r.LastMatchedAt, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRule(r *library.ExclusionRule) error {
	_, err := s.db.Exec(
		"UPDATE exclusion_rules SET pattern = ?, enabled = ?, priority = ? WHERE id = ?",
		r.Pattern, r.Enabled, r.Priority, r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRule(id string) error {
	_, err := s.db.Exec("DELETE FROM exclusion_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordRuleMatches(counts map[string]int, at time.Time) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE exclusion_rules SET files_excluded = files_excluded + ?, last_matched_at = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	for id, n := range counts {
		if _, err := stmt.Exec(n, at, id); err != nil {
			return fmt.Errorf("recording matches for rule %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time check that SQLiteStore implements library.Store
var _ library.Store = (*SQLiteStore)(nil)
