package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Promptonauts/convey/pkg/models"
)

type SQLiteStore struct {
	db       *sql.DB
	mu       sync.RWMutex
	watchers []chan RunEvent
	watchMu  sync.RWMutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		channel TEXT NOT NULL,
		state TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS command_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		phase TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		command TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		exit_code INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_channel ON runs(channel);
	CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
	CREATE INDEX IF NOT EXISTS idx_command_logs_run_id ON command_logs(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(run *models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.State == "" {
		run.State = models.RunPending
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, channel, state, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Channel), string(run.State), string(data), now, now)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	s.emit(RunEvent{Type: EventCreated, Run: run})
	return nil
}

func (s *SQLiteStore) GetRun(id string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM runs WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	var run models.RunRecord
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRun(run *models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE runs SET state = ?, data = ?, updated_at = ? WHERE id = ?
	`, string(run.State), string(data), run.UpdatedAt, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	s.emit(RunEvent{Type: EventUpdated, Run: run})
	return nil
}

func (s *SQLiteStore) ListRuns(channel models.Channel, limit int) ([]*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT data FROM runs"
	args := []interface{}{}
	if channel != "" {
		query += " WHERE channel = ?"
		args = append(args, string(channel))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var results []*models.RunRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var run models.RunRecord
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, err
		}
		results = append(results, &run)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) AppendCommandLog(runID string, logEntry models.CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO command_logs (run_id, timestamp, phase, sequence, command, output, exit_code, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, logEntry.Timestamp, logEntry.Phase, logEntry.Sequence,
		logEntry.Command, logEntry.Output, logEntry.ExitCode, logEntry.LatencyMs)
	return err
}

func (s *SQLiteStore) GetCommandLogs(runID string) ([]models.CommandLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT timestamp, phase, sequence, command, output, exit_code, latency_ms
		FROM command_logs WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CommandLog
	for rows.Next() {
		var l models.CommandLog
		if err := rows.Scan(&l.Timestamp, &l.Phase, &l.Sequence, &l.Command,
			&l.Output, &l.ExitCode, &l.LatencyMs); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Watch support

func (s *SQLiteStore) Watch() <-chan RunEvent {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	ch := make(chan RunEvent, 100)
	s.watchers = append(s.watchers, ch)
	return ch
}

func (s *SQLiteStore) emit(event RunEvent) {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()

	for _, ch := range s.watchers {
		select {
		case ch <- event:
		default:
			// Drop event if channel is full — non-blocking
		}
	}
}
