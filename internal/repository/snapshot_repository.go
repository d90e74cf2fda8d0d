package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

// QueryObserver receives database query timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// SnapshotRepository persists raw CMS timetables in PostgreSQL.
type SnapshotRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewSnapshotRepository constructs the repository. observer may be nil.
func NewSnapshotRepository(db *sqlx.DB, observer QueryObserver) *SnapshotRepository {
	return &SnapshotRepository{db: db, observer: observer}
}

// Checksum returns the hex SHA-256 of a payload.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Save stores the snapshot. An identical payload for the same year only
// moves fetched_at forward and keeps its original id.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.TimetableSnapshot) error {
	const query = `INSERT INTO timetable_snapshots (id, year, week_type, checksum, payload, fetched_at)
VALUES (:id, :year, :week_type, :checksum, :payload, :fetched_at)
ON CONFLICT (year, checksum)
DO UPDATE SET fetched_at = EXCLUDED.fetched_at, week_type = EXCLUDED.week_type
RETURNING id`
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.Checksum == "" {
		snapshot.Checksum = Checksum(snapshot.Payload)
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}
	defer r.observe("snapshot_save", time.Now())

	rows, err := r.db.NamedQueryContext(ctx, query, snapshot)
	if err != nil {
		return fmt.Errorf("save timetable snapshot: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&snapshot.ID); err != nil {
			return fmt.Errorf("scan snapshot id: %w", err)
		}
	}
	return rows.Err()
}

// Latest returns the most recently fetched snapshot for year.
func (r *SnapshotRepository) Latest(ctx context.Context, year int) (*models.TimetableSnapshot, error) {
	const query = `SELECT id, year, week_type, checksum, payload, fetched_at
FROM timetable_snapshots WHERE year = $1 ORDER BY fetched_at DESC LIMIT 1`
	defer r.observe("snapshot_latest", time.Now())

	var snapshot models.TimetableSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSnapshotNotFound, fmt.Sprintf("no stored timetable for %d", year))
		}
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns snapshot metadata for year, newest first, without payloads.
func (r *SnapshotRepository) List(ctx context.Context, year, limit int) ([]models.TimetableSnapshot, error) {
	const query = `SELECT id, year, week_type, checksum, fetched_at
FROM timetable_snapshots WHERE year = $1 ORDER BY fetched_at DESC LIMIT $2`
	if limit <= 0 {
		limit = 20
	}
	defer r.observe("snapshot_list", time.Now())

	var snapshots []models.TimetableSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, year, limit); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// Prune keeps the newest keep snapshots of year and deletes the rest.
func (r *SnapshotRepository) Prune(ctx context.Context, year, keep int) (int64, error) {
	const query = `DELETE FROM timetable_snapshots WHERE year = $1 AND id NOT IN (
SELECT id FROM timetable_snapshots WHERE year = $1 ORDER BY fetched_at DESC LIMIT $2)`
	if keep < 1 {
		keep = 1
	}
	defer r.observe("snapshot_prune", time.Now())

	res, err := r.db.ExecContext(ctx, query, year, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection for readiness probes.
func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SnapshotRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}
