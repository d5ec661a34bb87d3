// Package sqlite implements the reply record store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sparklabs/spark/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS replies (
	id                    TEXT PRIMARY KEY,
	permalink_url         TEXT NOT NULL,
	author_name           TEXT NOT NULL DEFAULT '',
	body_text             TEXT NOT NULL DEFAULT '',
	quoted_text           TEXT NOT NULL DEFAULT '',
	like_count            INTEGER NOT NULL DEFAULT 0,
	repost_count          INTEGER NOT NULL DEFAULT 0,
	reply_count           INTEGER NOT NULL DEFAULT 0,
	view_count            INTEGER NOT NULL DEFAULT 0,
	score                 INTEGER NOT NULL DEFAULT 0,
	status                TEXT NOT NULL,
	topic                 TEXT NOT NULL DEFAULT '',
	suggestions           TEXT NOT NULL DEFAULT '[]',
	used_model            TEXT NOT NULL DEFAULT '',
	used_credential_index INTEGER NOT NULL DEFAULT 0,
	error_message         TEXT NOT NULL DEFAULT '',
	created_at            INTEGER NOT NULL,
	updated_at            INTEGER NOT NULL,
	source_created_at     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_replies_permalink ON replies (permalink_url);
CREATE INDEX IF NOT EXISTS idx_replies_created ON replies (created_at DESC);
`

// Store implements domain.RecordStore using SQLite. Status transitions are
// conditional UPDATEs keyed on the prior status, which gives the pipeline
// its at-most-once resolution guard without any external lock.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	subs map[int]chan domain.RecordEvent
	next int
}

// Open opens (and if needed creates) the store at path. Use ":memory:" for
// tests. The caller should Close the store when done.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		db:   db,
		now:  time.Now,
		subs: make(map[int]chan domain.RecordEvent),
	}, nil
}

// Close closes the underlying database and all subscriber channels.
func (s *Store) Close() error {
	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Create inserts a new record, assigning an ID and timestamps if unset, and
// notifies subscribers.
func (s *Store) Create(ctx context.Context, rec *domain.ReplyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	if rec.Suggestions == nil {
		rec.Suggestions = []string{}
	}

	suggestions, err := json.Marshal(rec.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replies (
			id, permalink_url, author_name, body_text, quoted_text,
			like_count, repost_count, reply_count, view_count,
			score, status, topic, suggestions,
			used_model, used_credential_index, error_message,
			created_at, updated_at, source_created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PermalinkURL, rec.AuthorName, rec.BodyText, rec.QuotedText,
		rec.Metrics.LikeCount, rec.Metrics.RepostCount, rec.Metrics.ReplyCount, rec.Metrics.ViewCount,
		rec.Score, string(rec.Status), rec.Topic, string(suggestions),
		rec.UsedModel, rec.UsedCredentialIndex, rec.ErrorMessage,
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(), rec.SourceCreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	s.emit(domain.RecordEvent{Type: domain.RecordCreated, Record: *rec})
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.ReplyRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM replies WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// List retrieves up to limit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.ReplyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM replies ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.ReplyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM replies WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.emit(domain.RecordEvent{Type: domain.RecordDeleted, Record: *rec})
	return nil
}

// DeleteByPermalink removes every record with the given permalink. This is
// the explicit re-ingestion reset: a fresh record for the same post starts
// the pipeline over.
func (s *Store) DeleteByPermalink(ctx context.Context, permalinkURL string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM replies WHERE permalink_url = ?`, permalinkURL)
	if err != nil {
		return 0, fmt.Errorf("delete by permalink: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// ResolveGenerated transitions pending -> generated.
func (s *Store) ResolveGenerated(ctx context.Context, id, topic string, suggestions []string, model string, credentialIndex int) error {
	encoded, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	return s.transition(ctx, id, domain.StatusPending, `
		UPDATE replies
		SET status = ?, topic = ?, suggestions = ?, used_model = ?, used_credential_index = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.StatusGenerated), topic, string(encoded), model, credentialIndex,
		s.now().UTC().UnixMilli(), id, string(domain.StatusPending),
	)
}

// ResolveRejected transitions pending -> rejected.
func (s *Store) ResolveRejected(ctx context.Context, id, topic string) error {
	return s.transition(ctx, id, domain.StatusPending, `
		UPDATE replies SET status = ?, topic = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(domain.StatusRejected), topic, s.now().UTC().UnixMilli(), id, string(domain.StatusPending),
	)
}

// ResolveError transitions pending -> error.
func (s *Store) ResolveError(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, domain.StatusPending, `
		UPDATE replies SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(domain.StatusError), message, s.now().UTC().UnixMilli(), id, string(domain.StatusPending),
	)
}

// MarkPosted transitions generated -> posted.
func (s *Store) MarkPosted(ctx context.Context, id string) error {
	return s.transition(ctx, id, domain.StatusGenerated, `
		UPDATE replies SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(domain.StatusPosted), s.now().UTC().UnixMilli(), id, string(domain.StatusGenerated),
	)
}

// transition runs a conditional status update. RowsAffected == 0 means the
// record either does not exist or is not in the expected prior state.
func (s *Store) transition(ctx context.Context, id string, want domain.Status, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotPending
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.emit(domain.RecordEvent{Type: domain.RecordUpdated, Record: *rec})
	return nil
}

// Subscribe returns a buffered channel of change events and a cancel
// function. Slow subscribers drop events rather than block writers.
func (s *Store) Subscribe(buffer int) (<-chan domain.RecordEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan domain.RecordEvent, buffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Store) emit(ev domain.RecordEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

const selectColumns = `
	SELECT id, permalink_url, author_name, body_text, quoted_text,
		like_count, repost_count, reply_count, view_count,
		score, status, topic, suggestions,
		used_model, used_credential_index, error_message,
		created_at, updated_at, source_created_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*domain.ReplyRecord, error) {
	var (
		rec         domain.ReplyRecord
		status      string
		suggestions string
		createdMs   int64
		updatedMs   int64
		sourceMs    int64
	)
	err := row.Scan(
		&rec.ID, &rec.PermalinkURL, &rec.AuthorName, &rec.BodyText, &rec.QuotedText,
		&rec.Metrics.LikeCount, &rec.Metrics.RepostCount, &rec.Metrics.ReplyCount, &rec.Metrics.ViewCount,
		&rec.Score, &status, &rec.Topic, &suggestions,
		&rec.UsedModel, &rec.UsedCredentialIndex, &rec.ErrorMessage,
		&createdMs, &updatedMs, &sourceMs,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(suggestions), &rec.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	if sourceMs > 0 {
		rec.SourceCreatedAt = time.UnixMilli(sourceMs).UTC()
	}
	return &rec, nil
}
