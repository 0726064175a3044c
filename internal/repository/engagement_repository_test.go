package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/thesis-supervision-api/internal/models"
)

func newEngagementRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEngagementRepositoryExistsForStudent(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()

	repo := NewEngagementRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM engagements")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM engagements")).
		WithArgs("student-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsForStudent(context.Background(), "student-2")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()

	repo := NewEngagementRepository(db)
	rows := sqlmock.NewRows([]string{"id", "title", "description", "status", "student_id", "advisor_id", "created_at", "updated_at", "student_name", "advisor_name"}).
		AddRow("engagement-1", "Streaming graph partitioning", nil, "IN_PROGRESS", "student-1", "instructor-1", time.Now(), time.Now(), "Ana Silva", "Prof. Costa")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id, e.title")).
		WithArgs("engagement-1").
		WillReturnRows(rows)

	detail, err := repo.FindDetailByID(context.Background(), "engagement-1")
	require.NoError(t, err)
	require.Equal(t, "Ana Silva", detail.StudentName)
	require.Equal(t, models.EngagementInProgress, detail.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryCascadeDelete(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()

	repo := NewEngagementRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.stored_path FROM task_attachments")).
		WithArgs("engagement-1").
		WillReturnRows(sqlmock.NewRows([]string{"stored_path"}).
			AddRow("tasks/task-1/draft.pdf").
			AddRow("tasks/task-2/figures.pdf"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stored_path FROM thesis_files")).
		WithArgs("engagement-1").
		WillReturnRows(sqlmock.NewRows([]string{"stored_path"}).
			AddRow("theses/engagement-1/thesis.pdf"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM task_attachments")).
		WithArgs("engagement-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).
		WithArgs("engagement-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM thesis_files")).
		WithArgs("engagement-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM engagements")).
		WithArgs("engagement-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paths, err := repo.CascadeDelete(context.Background(), "engagement-1")
	require.NoError(t, err)
	require.Len(t, paths, 3)
	require.Contains(t, paths, "theses/engagement-1/thesis.pdf")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()

	repo := NewEngagementRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "engagement-1", models.EngagementCompleted))
	require.NoError(t, mock.ExpectationsWereMet())
}
