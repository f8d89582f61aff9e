package stock

import (
	"context"
	"fmt"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// ResolveForUpdate looks up every key in one round trip and row-locks the
	// matched variants in id order. Keys without a row are absent from the map.
	ResolveForUpdate(ctx context.Context, q db.DBTX, keys []Key) (map[Key]Variant, error)
	// Resolve is the lock-free variant used for pricing.
	Resolve(ctx context.Context, q db.DBTX, keys []Key) (map[Key]Variant, error)
	LookupProducts(ctx context.Context, q db.DBTX, ids []string) (map[string]ProductRef, error)

	// Decrement is a compare-and-set; false means the row held less than qty.
	Decrement(ctx context.Context, q db.DBTX, variantID int64, qty int) (bool, error)
	DecrementBySize(ctx context.Context, q db.DBTX, productID, size string, qty int) (Outcome, error)
	// DecrementProductStock lowers attributes.stock, floored at zero.
	DecrementProductStock(ctx context.Context, q db.DBTX, productID string, qty int) (Outcome, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const resolveQuery = `
	SELECT v.id, v.product_id, v.size, v.quantity, p.title, p.price
	FROM product_variants v
	JOIN products p ON p.id = v.product_id
	WHERE (v.product_id, v.size) IN (SELECT * FROM unnest($1::text[], $2::text[]))
	ORDER BY v.id`

func (r *repository) ResolveForUpdate(ctx context.Context, q db.DBTX, keys []Key) (map[Key]Variant, error) {
	return r.resolve(ctx, q, keys, resolveQuery+" FOR UPDATE OF v")
}

func (r *repository) Resolve(ctx context.Context, q db.DBTX, keys []Key) (map[Key]Variant, error) {
	return r.resolve(ctx, q, keys, resolveQuery)
}

func (r *repository) resolve(ctx context.Context, q db.DBTX, keys []Key, query string) (map[Key]Variant, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Resolve"),
		zap.Int("keys", len(keys)),
	)

	out := make(map[Key]Variant, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	productIDs, sizes := dedupe(keys)
	rows, err := q.QueryContext(ctx, query, pq.Array(productIDs), pq.Array(sizes))
	if err != nil {
		log.Error("failed to resolve variants", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Quantity, &v.Title, &v.Price); err != nil {
			log.Error("failed to scan variant", zap.Error(err))
			return nil, err
		}
		out[Key{ProductID: v.ProductID, Size: v.Size}] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("variants resolved", zap.Int("found", len(out)))
	return out, nil
}

func (r *repository) LookupProducts(ctx context.Context, q db.DBTX, ids []string) (map[string]ProductRef, error) {
	out := make(map[string]ProductRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, title, price FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p ProductRef
		if err := rows.Scan(&p.ID, &p.Title, &p.Price); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repository) Decrement(ctx context.Context, q db.DBTX, variantID int64, qty int) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE product_variants
		SET quantity = quantity - $1
		WHERE id = $2 AND quantity >= $1`, qty, variantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) DecrementBySize(ctx context.Context, q db.DBTX, productID, size string, qty int) (Outcome, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE product_variants
		SET quantity = quantity - $3
		WHERE product_id = $1 AND size = $2 AND quantity >= $3`, productID, size, qty)
	if err != nil {
		return Missing, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Missing, err
	}
	if n == 1 {
		return Applied, nil
	}

	var exists bool
	err = q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM product_variants WHERE product_id = $1 AND size = $2)`,
		productID, size).Scan(&exists)
	if err != nil {
		return Missing, fmt.Errorf("check variant: %w", err)
	}
	if exists {
		return Insufficient, nil
	}
	return Missing, nil
}

func (r *repository) DecrementProductStock(ctx context.Context, q db.DBTX, productID string, qty int) (Outcome, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET attributes = jsonb_set(
			attributes,
			'{stock}',
			to_jsonb(GREATEST((attributes->>'stock')::int - $2, 0))
		), updated_at = NOW()
		WHERE id = $1 AND attributes ? 'stock'`, productID, qty)
	if err != nil {
		return Missing, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Missing, err
	}
	if n == 0 {
		return Missing, nil
	}
	return Applied, nil
}
