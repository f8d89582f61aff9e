package client

import (
	"context"
	"database/sql"
	"errors"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, c *Client) error
	FindByEmail(ctx context.Context, email string) (*Client, error)
	GetByID(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context) ([]Client, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const clientColumns = `id, email, password, name, phone_number, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	var phone sql.NullString
	if err := row.Scan(&c.ID, &c.Email, &c.Password, &c.Name, &phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.PhoneNumber = phone.String
	return &c, nil
}

func (r *repository) Create(ctx context.Context, c *Client) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "repository"), zap.String("method", "Create"))

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO clients (email, password, name, phone_number)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.Email, c.Password, c.Name, c.PhoneNumber,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		log.Error("failed to insert client", zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	return c, err
}

func (r *repository) GetByID(ctx context.Context, id string) (*Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	return c, err
}

func (r *repository) List(ctx context.Context) ([]Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
