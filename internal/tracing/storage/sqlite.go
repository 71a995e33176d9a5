// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage provides a queryable SQLite sink for completed spans,
// used alongside the JSON trace file when conversations need to be
// inspected after the fact.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/ensemble/pkg/observability"
)

// SQLiteStore provides SQLite-backed storage for spans and their events.
type SQLiteStore struct {
	db *sql.DB
}

// Config contains SQLite storage configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// New creates a new SQLite storage backend.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL mode lets the batch processor write while readers query.
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS spans (
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			status_code INTEGER NOT NULL,
			status_message TEXT,
			attributes TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (trace_id, span_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans(trace_id)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_start_time ON spans(start_time)`,

		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			name TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			attributes TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_span ON events(trace_id, span_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// StoreSpan stores a span and its events in the database.
func (s *SQLiteStore) StoreSpan(ctx context.Context, span *observability.Span) error {
	if span == nil {
		return fmt.Errorf("span is nil")
	}
	if span.TraceID == "" {
		return fmt.Errorf("span trace_id is required")
	}
	if span.SpanID == "" {
		return fmt.Errorf("span span_id is required")
	}

	attributesJSON, err := json.Marshal(span.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	var endTime *int64
	if !span.EndTime.IsZero() {
		et := span.EndTime.UnixNano()
		endTime = &et
	}

	var parentID *string
	if span.ParentID != "" {
		parentID = &span.ParentID
	}

	query := `
		INSERT INTO spans (trace_id, span_id, parent_id, name, kind, start_time, end_time,
			status_code, status_message, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id, span_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			kind = excluded.kind,
			end_time = excluded.end_time,
			status_code = excluded.status_code,
			status_message = excluded.status_message,
			attributes = excluded.attributes
	`

	_, err = s.db.ExecContext(ctx, query,
		span.TraceID, span.SpanID, parentID, span.Name, span.Kind,
		span.StartTime.UnixNano(), endTime, span.Status.Code, span.Status.Message,
		attributesJSON, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store span: %w", err)
	}

	for _, event := range span.Events {
		if err := s.storeEvent(ctx, span.TraceID, span.SpanID, &event); err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}
	}

	return nil
}

// storeEvent stores a span event.
func (s *SQLiteStore) storeEvent(ctx context.Context, traceID, spanID string, event *observability.Event) error {
	attributesJSON, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `
		INSERT INTO events (trace_id, span_id, name, timestamp, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		traceID, spanID, event.Name, event.Timestamp.UnixNano(),
		attributesJSON, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}

	return nil
}

// GetSpan retrieves a span by trace ID and span ID.
func (s *SQLiteStore) GetSpan(ctx context.Context, traceID, spanID string) (*observability.Span, error) {
	query := `
		SELECT trace_id, span_id, parent_id, name, kind, start_time, end_time,
			status_code, status_message, attributes
		FROM spans WHERE trace_id = ? AND span_id = ?
	`

	span, err := s.scanSpan(s.db.QueryRowContext(ctx, query, traceID, spanID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("span not found: %s/%s", traceID, spanID)
	}
	if err != nil {
		return nil, err
	}

	events, err := s.getSpanEvents(ctx, traceID, spanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get span events: %w", err)
	}
	span.Events = events

	return span, nil
}

// GetTrace retrieves all spans of a trace, ordered by start time.
func (s *SQLiteStore) GetTrace(ctx context.Context, traceID string) ([]*observability.Span, error) {
	query := `
		SELECT trace_id, span_id, parent_id, name, kind, start_time, end_time,
			status_code, status_message, attributes
		FROM spans WHERE trace_id = ?
		ORDER BY start_time ASC
	`

	rows, err := s.db.QueryContext(ctx, query, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	var spans []*observability.Span
	for rows.Next() {
		span, err := s.scanSpan(rows)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spans: %w", err)
	}

	for _, span := range spans {
		events, err := s.getSpanEvents(ctx, span.TraceID, span.SpanID)
		if err != nil {
			return nil, fmt.Errorf("failed to get span events: %w", err)
		}
		span.Events = events
	}

	return spans, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanSpan(row rowScanner) (*observability.Span, error) {
	var span observability.Span
	var parentID *string
	var endTime *int64
	var startTime int64
	var attributesJSON []byte

	err := row.Scan(
		&span.TraceID, &span.SpanID, &parentID, &span.Name, &span.Kind,
		&startTime, &endTime, &span.Status.Code, &span.Status.Message,
		&attributesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan span: %w", err)
	}

	if parentID != nil {
		span.ParentID = *parentID
	}
	span.StartTime = time.Unix(0, startTime)
	if endTime != nil {
		span.EndTime = time.Unix(0, *endTime)
	}

	if len(attributesJSON) > 0 {
		if err := json.Unmarshal(attributesJSON, &span.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}

	return &span, nil
}

// getSpanEvents retrieves all events for a span, oldest first.
func (s *SQLiteStore) getSpanEvents(ctx context.Context, traceID, spanID string) ([]observability.Event, error) {
	query := `
		SELECT name, timestamp, attributes
		FROM events WHERE trace_id = ? AND span_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query, traceID, spanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []observability.Event
	for rows.Next() {
		var event observability.Event
		var timestamp int64
		var attributesJSON []byte

		if err := rows.Scan(&event.Name, &timestamp, &attributesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Timestamp = time.Unix(0, timestamp)
		if len(attributesJSON) > 0 {
			if err := json.Unmarshal(attributesJSON, &event.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event attributes: %w", err)
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
