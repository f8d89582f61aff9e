package upload

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO upload_jobs")).
		WithArgs("job-1", "batch.zip", "processing", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	j := &Job{ID: "job-1", OriginalZipName: "batch.zip", Status: StatusProcessing, UploadedByAdminID: 3}
	require.NoError(t, NewRepository(db).Create(context.Background(), j))
	assert.Equal(t, now, j.CreatedAt)
}

func TestRepository_StatusTransitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_jobs")).
		WithArgs("job-1", "completed", "http://cdn.local/reports/r.csv").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_jobs")).
		WithArgs("job-2", "failed", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Complete(context.Background(), "job-1", "http://cdn.local/reports/r.csv"))
	assert.ErrorIs(t, repo.Fail(context.Background(), "job-2"), ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "original_zip_name", "status", "report_csv_url", "uploaded_by_admin_id",
		"created_at", "updated_at", "name", "email"}
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN admins")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("job-2", "b.zip", "completed", "http://r", 3, now, now, "Ops", "ops@example.com").
			AddRow("job-1", "a.zip", "failed", nil, nil, now, now, nil, nil))

	jobs, err := NewRepository(db).List(context.Background())

	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "http://r", *jobs[0].ReportCSVURL)
	assert.Equal(t, "Ops", jobs[0].UploadedByAdmin.Name)
	assert.Nil(t, jobs[1].ReportCSVURL)
	assert.Nil(t, jobs[1].UploadedByAdmin)
}
