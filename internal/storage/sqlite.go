//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"keyevolve/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, schema_version, codec_version, started_at_unix, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			started_at_unix = excluded.started_at_unix,
			payload = excluded.payload
	`, run.ID, run.SchemaVersion, run.CodecVersion, run.StartedAtUnix, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) SaveLayout(ctx context.Context, layout model.LayoutRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeLayout(layout)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO layouts (id, schema_version, codec_version, keys, fitness, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			keys = excluded.keys,
			fitness = excluded.fitness,
			payload = excluded.payload
	`, layout.ID, layout.SchemaVersion, layout.CodecVersion, layout.Keys, layout.Fitness, payload)
	return err
}

func (s *SQLiteStore) GetLayout(ctx context.Context, id string) (model.LayoutRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.LayoutRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM layouts WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LayoutRecord{}, false, nil
		}
		return model.LayoutRecord{}, false, err
	}

	layout, err := DecodeLayout(payload)
	if err != nil {
		return model.LayoutRecord{}, false, fmt.Errorf("decode layout %s: %w", id, err)
	}
	return layout, true, nil
}

func (s *SQLiteStore) SaveFitnessHistory(ctx context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.saveRunPayload(ctx, "fitness_history", runID, payload)
}

func (s *SQLiteStore) GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.loadRunPayload(ctx, "fitness_history", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveDistanceHistory(ctx context.Context, runID string, history []uint64) error {
	payload, err := EncodeDistanceHistory(history)
	if err != nil {
		return err
	}
	return s.saveRunPayload(ctx, "distance_history", runID, payload)
}

func (s *SQLiteStore) GetDistanceHistory(ctx context.Context, runID string) ([]uint64, bool, error) {
	payload, ok, err := s.loadRunPayload(ctx, "distance_history", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeDistanceHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode distance history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.saveRunPayload(ctx, "generation_diagnostics", runID, payload)
}

func (s *SQLiteStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.loadRunPayload(ctx, "generation_diagnostics", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *SQLiteStore) SaveTopLayouts(ctx context.Context, runID string, top []model.TopLayoutRecord) error {
	payload, err := EncodeTopLayouts(top)
	if err != nil {
		return err
	}
	return s.saveRunPayload(ctx, "top_layouts", runID, payload)
}

func (s *SQLiteStore) GetTopLayouts(ctx context.Context, runID string) ([]model.TopLayoutRecord, bool, error) {
	payload, ok, err := s.loadRunPayload(ctx, "top_layouts", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	top, err := DecodeTopLayouts(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode top layouts %s: %w", runID, err)
	}
	return top, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// saveRunPayload upserts one per-run blob. table is always a constant from
// this file.
func (s *SQLiteStore) saveRunPayload(ctx context.Context, table, runID string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) loadRunPayload(ctx context.Context, table, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			started_at_unix INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS layouts (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			keys TEXT NOT NULL,
			fitness REAL NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fitness_history (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS distance_history (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generation_diagnostics (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS top_layouts (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
