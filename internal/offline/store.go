package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"forgesync/internal/config"
)

// QueuedIDPrefix marks record identifiers so callers can never mistake a
// locally queued id for a live backend job id.
const QueuedIDPrefix = "queued-"

// Store manages offline queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
// Failures wrap ErrStorageUnavailable so callers can degrade to
// direct-submission-only operation.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w: %w", ErrStorageUnavailable, err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w: %w", ErrStorageUnavailable, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w: %w", pragma, ErrStorageUnavailable, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the queue database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Enqueue writes one record, payload bytes included, as a single transaction.
func (s *Store) Enqueue(ctx context.Context, targets []Payload, carrier Payload, options json.RawMessage) (*Record, error) {
	if len(targets) == 0 {
		return nil, errors.New("at least one target payload is required")
	}
	if len(carrier.Data) == 0 {
		return nil, errors.New("carrier payload is required")
	}
	if len(options) == 0 {
		options = json.RawMessage("{}")
	}

	id := QueuedIDPrefix + uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enqueue tx: %w: %w", ErrStorageUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO queued_jobs (id, created_at, options_json) VALUES (?, ?, ?)`,
		id,
		now.Format(time.RFC3339Nano),
		string(options),
	); err != nil {
		return nil, fmt.Errorf("insert queued job: %w: %w", ErrStorageUnavailable, err)
	}

	insertPayload := func(role string, ordinal int, p Payload) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO queued_payloads (job_id, role, ordinal, name, mime, size, data)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id,
			role,
			ordinal,
			p.Name,
			p.MIME,
			p.Size,
			p.Data,
		)
		if err != nil {
			return fmt.Errorf("insert %s payload %d: %w: %w", role, ordinal, ErrStorageUnavailable, err)
		}
		return nil
	}

	for i, target := range targets {
		if err := insertPayload("target", i, normalizePayload(target)); err != nil {
			return nil, err
		}
	}
	if err := insertPayload("carrier", 0, normalizePayload(carrier)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w: %w", ErrStorageUnavailable, err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches one record including payload bytes. Returns nil when the
// record does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, options_json FROM queued_jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queued job: %w", err)
	}
	if err := s.loadPayloads(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// List returns all records ordered by enqueue time. Storage iteration order
// is never relied on; ordering is explicit.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, options_json FROM queued_jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, record := range records {
		if err := s.loadPayloads(ctx, record); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Remove deletes a record by id. Removing a missing id is not an error.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queued_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete queued job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every queued record and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queued_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queued jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// Count returns the number of queued records without loading payload bytes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queued_jobs`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count queued jobs: %w", err)
	}
	return count, nil
}

// Materialize validates the record invariant and returns the payloads ready
// for replay. A record with no carrier or no targets yields ErrCorruptRecord.
func (s *Store) Materialize(record *Record) ([]Payload, Payload, error) {
	if record == nil {
		return nil, Payload{}, fmt.Errorf("%w: record is nil", ErrCorruptRecord)
	}
	if record.Carrier == nil || len(record.Carrier.Data) == 0 {
		return nil, Payload{}, fmt.Errorf("%w: record %s has no carrier payload", ErrCorruptRecord, record.ID)
	}
	if len(record.Targets) == 0 {
		return nil, Payload{}, fmt.Errorf("%w: record %s has no target payloads", ErrCorruptRecord, record.ID)
	}
	return record.Targets, *record.Carrier, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'queued_jobs'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM queued_jobs")
		if err := row.Scan(&health.TotalRecords); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count queued jobs: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

func (s *Store) loadPayloads(ctx context.Context, record *Record) error {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT role, name, mime, size, data FROM queued_payloads WHERE job_id = ? ORDER BY role, ordinal`,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("load payloads for %s: %w", record.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			role    string
			payload Payload
		)
		if err := rows.Scan(&role, &payload.Name, &payload.MIME, &payload.Size, &payload.Data); err != nil {
			return fmt.Errorf("scan payload for %s: %w", record.ID, err)
		}
		switch role {
		case "carrier":
			carrier := payload
			record.Carrier = &carrier
		case "target":
			record.Targets = append(record.Targets, payload)
		}
	}
	return rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id         string
		createdRaw string
		optionsRaw string
	)
	if err := scanner.Scan(&id, &createdRaw, &optionsRaw); err != nil {
		return nil, err
	}

	record := &Record{ID: id, Options: json.RawMessage(optionsRaw)}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

func normalizePayload(p Payload) Payload {
	if p.Size == 0 {
		p.Size = int64(len(p.Data))
	}
	if strings.TrimSpace(p.MIME) == "" {
		p.MIME = "application/octet-stream"
	}
	return p
}
