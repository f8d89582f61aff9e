package admin

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"techwire-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id int64) (*Admin, error)
	FindByUID(ctx context.Context, uid string) (*Admin, error)
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	// LinkUID sets the identity subject on an unlinked record.
	LinkUID(ctx context.Context, id int64, uid string) (*Admin, error)
	Delete(ctx context.Context, id int64) error
	ListRegular(ctx context.Context) ([]Admin, error)
	ListEmails(ctx context.Context) ([]string, error)
	// SuperExists reports a super admin with the given email or username.
	SuperExists(ctx context.Context, email, username string) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const adminColumns = `id, uid, username, email, name, super_admin, created_at`

func scanAdmin(row interface{ Scan(...any) error }) (*Admin, error) {
	var (
		a   Admin
		uid sql.NullString
	)
	if err := row.Scan(&a.ID, &uid, &a.Username, &a.Email, &a.Name, &a.SuperAdmin, &a.CreatedAt); err != nil {
		return nil, err
	}
	if uid.Valid {
		a.UID = &uid.String
	}
	return &a, nil
}

func (r *repository) findOne(ctx context.Context, where string, arg any) (*Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	return a, err
}

func (r *repository) Create(ctx context.Context, a *Admin) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "repository"), zap.String("method", "Create"))

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO admins (username, email, name, super_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.Username, a.Email, a.Name, a.SuperAdmin,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "username") {
				return ErrUsernameExists
			}
			return ErrEmailExists
		}
		log.Error("failed to insert admin", zap.String("email", a.Email), zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Admin, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *repository) FindByUID(ctx context.Context, uid string) (*Admin, error) {
	return r.findOne(ctx, `uid = $1`, uid)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*Admin, error) {
	return r.findOne(ctx, `username = $1`, username)
}

func (r *repository) LinkUID(ctx context.Context, id int64, uid string) (*Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx, `
		UPDATE admins SET uid = $2
		WHERE id = $1 AND uid IS NULL
		RETURNING `+adminColumns, id, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUIDConflict
	}
	return a, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func (r *repository) ListRegular(ctx context.Context) ([]Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE super_admin = FALSE ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	admins := []Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *a)
	}
	return admins, rows.Err()
}

func (r *repository) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email FROM admins ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (r *repository) SuperExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM admins
			WHERE super_admin = TRUE AND (email = $1 OR username = $2)
		)`, email, username).Scan(&exists)
	return exists, err
}
