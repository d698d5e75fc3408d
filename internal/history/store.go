// Package history persists completed orchestrations to a local SQLite
// database so past runs can be listed and inspected.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pmorten/stagehand/internal/filelock"
	"github.com/pmorten/stagehand/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Summary is the listing row for one stored orchestration.
type Summary struct {
	ID          string
	Input       string
	Timestamp   time.Time
	Success     bool
	StopReason  string
	ReplanCount int
	CostUSD     float64
}

// Store manages the SQLite database of orchestration records.
type Store struct {
	db     *sql.DB
	dbPath string
	lock   *filelock.Lock
}

// NewStore opens (creating if needed) the history database at dbPath.
// ":memory:" is accepted for tests.
func NewStore(dbPath string) (*Store, error) {
	var lock *filelock.Lock
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		var err error
		lock, err = filelock.ForDatabase(dbPath)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	init := func() error {
		_, err := s.db.ExecContext(ctx, schemaSQL)
		return err
	}
	if s.lock != nil {
		return s.lock.WithLock(ctx, init)
	}
	return init()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save writes one orchestration record. An empty ID gets a generated UUID
// and a zero timestamp gets the current time; both are written back to the
// record.
func (s *Store) Save(ctx context.Context, record *models.OrchestrationRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Type == "" {
		record.Type = models.RecordTypeUserRequest
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	planJSON, err := marshalField(record.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	resultsJSON, err := marshalField(record.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	reflectionJSON, err := marshalField(record.Reflection)
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}

	query := `INSERT INTO orchestrations
		(id, type, input, plan, results, reflection, timestamp, success, stopped_at_step, stop_reason, replan_count, model_cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Type,
		record.Input,
		planJSON,
		resultsJSON,
		reflectionJSON,
		record.Timestamp,
		record.Success,
		record.StoppedAtStep,
		record.StopReason,
		record.ReplanCount,
		record.ModelCostUSD,
	)
	if err != nil {
		return fmt.Errorf("insert orchestration record: %w", err)
	}
	return nil
}

// List returns the most recent orchestrations, newest first. limit <= 0
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT id, input, timestamp, success, stop_reason, replan_count, model_cost_usd
		FROM orchestrations
		ORDER BY timestamp DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orchestrations: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var stopReason sql.NullString
		if err := rows.Scan(&sum.ID, &sum.Input, &sum.Timestamp, &sum.Success, &stopReason, &sum.ReplanCount, &sum.CostUSD); err != nil {
			return nil, fmt.Errorf("scan orchestration row: %w", err)
		}
		sum.StopReason = stopReason.String
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Get loads one full orchestration record by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.OrchestrationRecord, error) {
	query := `SELECT id, type, input, plan, results, reflection, timestamp, success, stopped_at_step, stop_reason, replan_count, model_cost_usd
		FROM orchestrations WHERE id = ?`

	var record models.OrchestrationRecord
	var planJSON, resultsJSON, reflectionJSON, stoppedAtStep, stopReason sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.Type,
		&record.Input,
		&planJSON,
		&resultsJSON,
		&reflectionJSON,
		&record.Timestamp,
		&record.Success,
		&stoppedAtStep,
		&stopReason,
		&record.ReplanCount,
		&record.ModelCostUSD,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("orchestration %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query orchestration %s: %w", id, err)
	}

	record.StoppedAtStep = stoppedAtStep.String
	record.StopReason = stopReason.String
	if err := unmarshalField(planJSON, &record.Plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if err := unmarshalField(resultsJSON, &record.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	if err := unmarshalField(reflectionJSON, &record.Reflection); err != nil {
		return nil, fmt.Errorf("unmarshal reflection: %w", err)
	}
	return &record, nil
}

func marshalField(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalField(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "" || src.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}
