package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

type queryRecorder struct {
	labels []string
}

func (r *queryRecorder) ObserveDBQuery(label string, _ time.Duration) {
	r.labels = append(r.labels, label)
}

func newSnapshotRepoMock(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock, *queryRecorder) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	t.Cleanup(func() { _ = sqlxDB.Close() })
	recorder := &queryRecorder{}
	return NewSnapshotRepository(sqlxDB, recorder), mock, recorder
}

func TestSnapshotRepositorySave(t *testing.T) {
	repo, mock, recorder := newSnapshotRepoMock(t)
	payload := []byte(`{"week_type":"A"}`)

	mock.ExpectQuery("INSERT INTO timetable_snapshots").
		WithArgs(sqlmock.AnyArg(), 2024, "A", Checksum(payload), payload, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	snapshot := &models.TimetableSnapshot{Year: 2024, WeekType: "A", Payload: payload}
	require.NoError(t, repo.Save(context.Background(), snapshot))

	assert.Equal(t, "existing-id", snapshot.ID)
	assert.Len(t, snapshot.Checksum, 64)
	assert.False(t, snapshot.FetchedAt.IsZero())
	assert.Equal(t, []string{"snapshot_save"}, recorder.labels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryLatest(t *testing.T) {
	repo, mock, _ := newSnapshotRepoMock(t)
	fetched := time.Date(2024, 9, 2, 6, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "year", "week_type", "checksum", "payload", "fetched_at"}).
		AddRow("snap-1", 2024, "B", "abc", []byte(`{}`), fetched)
	mock.ExpectQuery("SELECT id, year, week_type, checksum, payload, fetched_at").
		WithArgs(2024).
		WillReturnRows(rows)

	snapshot, err := repo.Latest(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snapshot.ID)
	assert.Equal(t, "B", snapshot.WeekType)
	assert.Equal(t, fetched, snapshot.FetchedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryLatestNotFound(t *testing.T) {
	repo, mock, _ := newSnapshotRepoMock(t)
	mock.ExpectQuery("SELECT id, year").
		WithArgs(2023).
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "week_type", "checksum", "payload", "fetched_at"}))

	_, err := repo.Latest(context.Background(), 2023)
	assert.True(t, errors.Is(err, appErrors.ErrSnapshotNotFound))
}

func TestSnapshotRepositoryList(t *testing.T) {
	repo, mock, _ := newSnapshotRepoMock(t)
	rows := sqlmock.NewRows([]string{"id", "year", "week_type", "checksum", "fetched_at"}).
		AddRow("snap-2", 2024, "A", "def", time.Now()).
		AddRow("snap-1", 2024, "B", "abc", time.Now().Add(-time.Hour))
	mock.ExpectQuery("SELECT id, year, week_type, checksum, fetched_at").
		WithArgs(2024, 20).
		WillReturnRows(rows)

	snapshots, err := repo.List(context.Background(), 2024, 0)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "snap-2", snapshots[0].ID)
	assert.Nil(t, snapshots[0].Payload)
}

func TestSnapshotRepositoryPrune(t *testing.T) {
	repo, mock, _ := newSnapshotRepoMock(t)
	mock.ExpectExec("DELETE FROM timetable_snapshots").
		WithArgs(2024, 5).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.Prune(context.Background(), 2024, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
