package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/utils"

	"go.uber.org/zap"
)

// Repository is the order record store. Methods taking a db.DBTX run on the
// caller's transaction; the rest use the pool.
type Repository interface {
	Insert(ctx context.Context, q db.DBTX, o *Order) error
	Delete(ctx context.Context, q db.DBTX, id int64) error
	SetProviderOrderID(ctx context.Context, q db.DBTX, id int64, providerOrderID string) error
	GetByProviderOrderIDForUpdate(ctx context.Context, q db.DBTX, providerOrderID string) (*Order, error)
	MarkPaid(ctx context.Context, q db.DBTX, id int64, paymentID, signature string) error
	MarkStockApplied(ctx context.Context, q db.DBTX, id int64) error
	// MarkFailed flags an unpaid order as FAILED; it reports false when
	// nothing changed because the order is missing or already paid.
	MarkFailed(ctx context.Context, providerOrderID string) (bool, error)

	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	SetStatus(ctx context.Context, orderID string, status Status) (*Order, error)
	UpdateDetails(ctx context.Context, orderID string, patch DetailsPatch) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, order_id, client_id, name, email, phone_number, shipping_address,
	products, total_amount, status, payment_status, flow, stock_applied,
	provider_order_id, payment_id, payment_signature, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var (
		o                             Order
		phone                         sql.NullString
		shipping                      []byte
		providerID, paymentID, paySig sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.ClientID, &o.Name, &o.Email, &phone, &shipping,
		&o.Products, &o.TotalAmount, &o.Status, &o.PaymentStatus, &o.Flow, &o.StockApplied,
		&providerID, &paymentID, &paySig, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PhoneNumber = phone.String
	if len(shipping) > 0 {
		o.ShippingAddress = shipping
	}
	if providerID.Valid {
		o.ProviderOrderID = &providerID.String
	}
	if paymentID.Valid {
		o.PaymentID = &paymentID.String
	}
	if paySig.Valid {
		o.PaymentSignature = &paySig.String
	}
	return &o, nil
}

// jsonArg sends JSON as text; lib/pq would otherwise encode []byte as bytea.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *repository) Insert(ctx context.Context, q db.DBTX, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Insert"),
		zap.String("order_id", o.OrderID),
	)

	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_id, client_id, name, email, phone_number, shipping_address,
			products, total_amount, status, payment_status, flow, stock_applied
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		o.OrderID, o.ClientID, o.Name, o.Email, o.PhoneNumber, jsonArg(o.ShippingAddress),
		o.Products, o.TotalAmount, o.Status, o.PaymentStatus, o.Flow, o.StockApplied,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, o.OrderID)
		}
		log.Error("failed to insert order", zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (r *repository) SetProviderOrderID(ctx context.Context, q db.DBTX, id int64, providerOrderID string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE orders SET provider_order_id = $2, updated_at = NOW() WHERE id = $1`,
		id, providerOrderID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: provider order %s", ErrConflict, providerOrderID)
		}
		return err
	}
	return expectOne(res)
}

func (r *repository) GetByProviderOrderIDForUpdate(ctx context.Context, q db.DBTX, providerOrderID string) (*Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_order_id = $1 FOR UPDATE`,
		providerOrderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *repository) MarkPaid(ctx context.Context, q db.DBTX, id int64, paymentID, signature string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, payment_id = $4, payment_signature = $5, updated_at = NOW()
		WHERE id = $1`,
		id, PaymentPaid, StatusConfirmed, paymentID, utils.NilIfEmpty(signature))
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) MarkStockApplied(ctx context.Context, q db.DBTX, id int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE orders SET stock_applied = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) MarkFailed(ctx context.Context, providerOrderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW()
		WHERE provider_order_id = $1 AND payment_status = $3`,
		providerOrderID, PaymentFailed, PaymentPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *repository) SetStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE order_id = $1
		RETURNING `+orderColumns, orderID, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *repository) UpdateDetails(ctx context.Context, orderID string, patch DetailsPatch) (*Order, error) {
	sets := make([]string, 0, 5)
	args := []any{orderID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.PhoneNumber != nil {
		add("phone_number", *patch.PhoneNumber)
	}
	if patch.ShippingAddress != nil {
		add("shipping_address", jsonArg(patch.ShippingAddress))
	}
	if len(sets) == 0 {
		return r.GetByOrderID(ctx, orderID)
	}
	sets = append(sets, "updated_at = NOW()")

	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE order_id = $1 RETURNING `+orderColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "repository"), zap.String("method", "List"))

	var (
		where []string
		args  []any
	)
	if f.ClientID != "" {
		args = append(args, f.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
