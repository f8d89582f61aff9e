package upload

import (
	"context"
	"database/sql"

	"techwire-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Complete(ctx context.Context, id, reportURL string) error
	Fail(ctx context.Context, id string) error
	List(ctx context.Context) ([]Job, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, j *Job) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO upload_jobs (id, original_zip_name, status, uploaded_by_admin_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		j.ID, j.OriginalZipName, j.Status, j.UploadedByAdminID,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert upload job",
			zap.String("layer", "repository"), zap.String("job_id", j.ID), zap.Error(err))
	}
	return err
}

func (r *repository) setStatus(ctx context.Context, id string, status Status, reportURL *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE upload_jobs
		SET status = $2, report_csv_url = COALESCE($3, report_csv_url), updated_at = NOW()
		WHERE id = $1`, id, status, reportURL)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *repository) Complete(ctx context.Context, id, reportURL string) error {
	return r.setStatus(ctx, id, StatusCompleted, &reportURL)
}

func (r *repository) Fail(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, StatusFailed, nil)
}

func (r *repository) List(ctx context.Context) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT j.id, j.original_zip_name, j.status, j.report_csv_url, j.uploaded_by_admin_id,
			j.created_at, j.updated_at, a.name, a.email
		FROM upload_jobs j
		LEFT JOIN admins a ON a.id = j.uploaded_by_admin_id
		ORDER BY j.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var (
			j           Job
			adminID     sql.NullInt64
			report      sql.NullString
			name, email sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.OriginalZipName, &j.Status, &report, &adminID,
			&j.CreatedAt, &j.UpdatedAt, &name, &email); err != nil {
			return nil, err
		}
		j.UploadedByAdminID = adminID.Int64
		if report.Valid {
			j.ReportCSVURL = &report.String
		}
		if name.Valid || email.Valid {
			j.UploadedByAdmin = &Uploader{Name: name.String, Email: email.String}
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
