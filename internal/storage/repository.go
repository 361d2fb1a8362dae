package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertOutcomeSQL = `INSERT INTO outcome_records (
        height,
        hash,
        result_value,
        parity,
        size,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (height) DO UPDATE
    SET
        hash         = EXCLUDED.hash,
        result_value = EXCLUDED.result_value,
        parity       = EXCLUDED.parity,
        size         = EXCLUDED.size,
        observed_at  = EXCLUDED.observed_at;`

	listRecordsBetweenSQL = `SELECT
        height,
        hash,
        result_value,
        parity,
        size,
        observed_at,
        created_at
    FROM outcome_records
    WHERE height >= $1
      AND height <= $2
    ORDER BY height;`

	listRecentRecordsSQL = `SELECT
        height,
        hash,
        result_value,
        parity,
        size,
        observed_at,
        created_at
    FROM outcome_records
    ORDER BY height DESC
    LIMIT $1;`

	latestHeightSQL = `SELECT COALESCE(MAX(height), 0), COUNT(*) FROM outcome_records;`

	countRecordsSQL = `SELECT COUNT(*) FROM outcome_records;`

	deleteRecordsBeforeSQL = `DELETE FROM outcome_records WHERE height < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// OutcomeStore defines operations for outcome record persistence.
type OutcomeStore interface {
	UpsertRecord(ctx context.Context, rec OutcomeRecord) error
	ListRecordsBetween(ctx context.Context, fromHeight, toHeight uint64) ([]OutcomeRecord, error)
	ListRecentRecords(ctx context.Context, limit int) ([]OutcomeRecord, error)
	LatestHeight(ctx context.Context) (uint64, bool, error)
	CountRecords(ctx context.Context) (int64, error)
	DeleteRecordsBefore(ctx context.Context, height uint64) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the pgx-backed outcome archive.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertRecord persists or updates an outcome record keyed by height.
func (s *Store) UpsertRecord(ctx context.Context, rec OutcomeRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertOutcomeSQL,
		int64(rec.Height),
		rec.Hash,
		rec.ResultValue,
		rec.Parity,
		rec.Size,
		rec.ObservedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert outcome record: %w", execErr)
	}
	return nil
}

// ListRecordsBetween lists records within an inclusive height range.
func (s *Store) ListRecordsBetween(ctx context.Context, fromHeight, toHeight uint64) ([]OutcomeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecordsBetweenSQL, int64(fromHeight), int64(toHeight))
	if queryErr != nil {
		return nil, fmt.Errorf("list records between: %w", queryErr)
	}
	defer rows.Close()

	records := make([]OutcomeRecord, 0)
	for rows.Next() {
		rec, scanErr := scanOutcomeRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ListRecentRecords lists the most recent records ordered by descending height.
func (s *Store) ListRecentRecords(ctx context.Context, limit int) ([]OutcomeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRecordsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]OutcomeRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanOutcomeRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// LatestHeight returns the highest archived height; ok is false when the
// archive is empty.
func (s *Store) LatestHeight(ctx context.Context) (uint64, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, false, err
	}

	var height int64
	var count int64
	if scanErr := pool.QueryRow(ctx, latestHeightSQL).Scan(&height, &count); scanErr != nil {
		return 0, false, fmt.Errorf("latest height: %w", scanErr)
	}
	if count == 0 {
		return 0, false, nil
	}
	return uint64(height), true, nil
}

// CountRecords counts archived records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRecordsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count records: %w", scanErr)
	}
	return count, nil
}

// DeleteRecordsBefore removes records below a height threshold.
func (s *Store) DeleteRecordsBefore(ctx context.Context, height uint64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteRecordsBeforeSQL, int64(height)); execErr != nil {
		return fmt.Errorf("delete records before: %w", execErr)
	}
	return nil
}

func scanOutcomeRecord(rows pgx.Rows) (OutcomeRecord, error) {
	var (
		height      int64
		hash        string
		resultValue int
		parity      string
		size        string
		observedAt  time.Time
		createdAt   time.Time
	)

	if err := rows.Scan(
		&height,
		&hash,
		&resultValue,
		&parity,
		&size,
		&observedAt,
		&createdAt,
	); err != nil {
		return OutcomeRecord{}, err
	}

	return OutcomeRecord{
		Height:      uint64(height),
		Hash:        hash,
		ResultValue: resultValue,
		Parity:      parity,
		Size:        size,
		ObservedAt:  observedAt,
		CreatedAt:   createdAt,
	}, nil
}

var _ OutcomeStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
