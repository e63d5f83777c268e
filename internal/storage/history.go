// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no exchange matches an ID.
	ErrNotFound = errors.New("exchange not found")

	// ErrAmbiguousID is returned when a short ID matches several exchanges.
	ErrAmbiguousID = errors.New("ambiguous exchange id")
)

// MinIDPrefix is the shortest ID prefix Get accepts.
const MinIDPrefix = 4

// =============================================================================
// EXCHANGE TYPE
// =============================================================================

// Exchange is one stored request and its response.
type Exchange struct {
	ID               string        `json:"id"`
	CreatedAt        time.Time     `json:"created_at"`
	Command          string        `json:"command"`
	Model            string        `json:"model"`
	Prompt           string        `json:"prompt"`
	Response         string        `json:"response"`
	FinishReason     string        `json:"finish_reason,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Citations        []string      `json:"citations,omitempty"`
	Duration         time.Duration `json:"duration_ns,omitempty"`
}

// ShortID returns the first 8 characters of the ID.
func (e *Exchange) ShortID() string {
	if len(e.ID) <= 8 {
		return e.ID
	}
	return e.ID[:8]
}

// =============================================================================
// HISTORY STORE
// =============================================================================

// HistoryStore persists exchanges in SQLite.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &HistoryStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *HistoryStore) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO metadata(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion),
	)
	return err
}

// Path returns the database file path.
func (s *HistoryStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// normalize prepares text for case-insensitive, Unicode-aware matching.
// A Caser carries state, so each call gets its own.
func normalize(text string) string {
	return cases.Fold().String(norm.NFC.String(text))
}

// Record stores ex, assigning an ID and timestamp when they are unset.
func (s *HistoryStore) Record(ctx context.Context, ex *Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	citations, err := json.Marshal(ex.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}
	if ex.Citations == nil {
		citations = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, created_at, command, model, prompt, response,
			finish_reason, prompt_tokens, completion_tokens, total_tokens,
			citations, duration_ms, search_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.CreatedAt.UnixMilli(), ex.Command, ex.Model, ex.Prompt, ex.Response,
		ex.FinishReason, ex.PromptTokens, ex.CompletionTokens, ex.TotalTokens,
		string(citations), ex.Duration.Milliseconds(),
		normalize(ex.Prompt+"\n"+ex.Response),
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

const selectColumns = `id, created_at, command, model, prompt, response, finish_reason,
	prompt_tokens, completion_tokens, total_tokens, citations, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(row rowScanner) (*Exchange, error) {
	var (
		ex        Exchange
		createdMs int64
		durMs     int64
		citations string
	)
	if err := row.Scan(&ex.ID, &createdMs, &ex.Command, &ex.Model, &ex.Prompt, &ex.Response,
		&ex.FinishReason, &ex.PromptTokens, &ex.CompletionTokens, &ex.TotalTokens,
		&citations, &durMs); err != nil {
		return nil, err
	}
	ex.CreatedAt = time.UnixMilli(createdMs)
	ex.Duration = time.Duration(durMs) * time.Millisecond
	if citations != "" && citations != "[]" {
		if err := json.Unmarshal([]byte(citations), &ex.Citations); err != nil {
			return nil, fmt.Errorf("failed to decode citations: %w", err)
		}
	}
	return &ex, nil
}

// Get returns the exchange whose ID is id or starts with id. Prefixes
// must be at least MinIDPrefix characters.
func (s *HistoryStore) Get(ctx context.Context, id string) (*Exchange, error) {
	id = strings.TrimSpace(id)
	if len(id) < MinIDPrefix {
		return nil, fmt.Errorf("%w: id %q is too short", ErrNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM exchanges WHERE id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange: %w", err)
	}
	defer rows.Close()

	var found []*Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		for _, ex := range found {
			if ex.ID == id {
				return ex, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// List returns exchanges newest first.
func (s *HistoryStore) List(ctx context.Context, limit, offset int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM exchanges ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	return collect(rows)
}

// Search returns exchanges whose prompt or response contains query,
// ignoring case and Unicode normalisation differences. Newest first.
func (s *HistoryStore) Search(ctx context.Context, query string, limit int) ([]*Exchange, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit, 0)
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM exchanges
		 WHERE search_text LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id LIMIT ?`,
		"%"+escapeLike(normalize(query))+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search exchanges: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Exchange, error) {
	defer rows.Close()
	var out []*Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Count returns the number of stored exchanges.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return n, nil
}

// Delete removes one exchange by full ID or unique prefix.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	ex, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE id = ?`, ex.ID); err != nil {
		return fmt.Errorf("failed to delete exchange: %w", err)
	}
	return nil
}

// Clear removes every exchange and returns how many were removed.
func (s *HistoryStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// escapeLike escapes LIKE wildcards so they match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
