// Package db keeps a history of calls in a SQLite database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	method      TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	status      INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	problem     TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	body_size   INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON history (created_at);
`

// Entry is one recorded call.
type Entry struct {
	ID         int64
	Method     string
	URL        string
	Status     int
	OK         bool
	Problem    string
	Error      string
	DurationMs int64
	BodySize   int
	CreatedAt  time.Time
}

// QueryResult is the result of an ad-hoc query.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

type Client struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewClient opens the database named by connectionString and creates the
// history table. Accepted forms are "sqlite://path", "sqlite:path" and a
// bare file path.
func NewClient(connectionString string) (*Client, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return &Client{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// RecordEnvelope stores env and returns the new entry id.
func (c *Client) RecordEnvelope(ctx context.Context, env *http.Envelope) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	var errText string
	if env.OriginalError != nil {
		errText = env.OriginalError.Error()
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO history (method, url, status, ok, problem, error, duration_ms, body_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		env.Method(), env.URL, env.Status, env.OK, env.Problem.String(), errText,
		env.DurationMs(), len(env.Body), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record call: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, method, url, status, ok, problem, error, duration_ms, body_size, created_at
		 FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Method, &e.URL, &e.Status, &e.OK, &e.Problem, &e.Error,
			&e.DurationMs, &e.BodySize, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (c *Client) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Monitor returns a monitor that records every envelope.
func (c *Client) Monitor() http.Monitor {
	return func(ctx context.Context, env *http.Envelope) error {
		_, err := c.RecordEnvelope(context.WithoutCancel(ctx), env)
		return err
	}
}

// Query runs an arbitrary read query against the history database.
func (c *Client) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", fmt.Errorf("empty connection string")
	}
	if dsn, ok := strings.CutPrefix(connStr, "sqlite://"); ok {
		return dsn, nil
	}
	if dsn, ok := strings.CutPrefix(connStr, "sqlite:"); ok {
		return dsn, nil
	}
	if scheme, _, ok := strings.Cut(connStr, "://"); ok {
		return "", fmt.Errorf("unsupported database scheme: %s", scheme)
	}
	return connStr, nil
}
