package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Repository is the catalog store. Methods taking a db.DBTX run on the
// caller's transaction.
type Repository interface {
	Insert(ctx context.Context, q db.DBTX, p *Product) error
	Update(ctx context.Context, q db.DBTX, p *Product) error
	// ReplaceVariants drops every variant of the product and inserts the
	// given set.
	ReplaceVariants(ctx context.Context, q db.DBTX, productID string, variants []Variant) ([]Variant, error)
	Get(ctx context.Context, q db.DBTX, id string) (*Product, error)

	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]Product, int, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, title, description, image_urls, category, sub_category, price,
	tax_rate, charge_tax, dimensions, weight, attributes, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	var (
		p                         Product
		description, subCategory  sql.NullString
		dimensions, weight, attrs []byte
	)
	err := row.Scan(
		&p.ID, &p.Title, &description, &p.ImageURLs, &p.Category, &subCategory, &p.Price,
		&p.TaxRate, &p.ChargeTax, &dimensions, &weight, &attrs, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	if subCategory.Valid {
		p.SubCategory = &subCategory.String
	}
	if p.ImageURLs == nil {
		p.ImageURLs = pq.StringArray{}
	}
	if err := unmarshalJSON(dimensions, &p.Dimensions); err != nil {
		return nil, fmt.Errorf("decode dimensions: %w", err)
	}
	if err := unmarshalJSON(weight, &p.Weight); err != nil {
		return nil, fmt.Errorf("decode weight: %w", err)
	}
	if err := unmarshalJSON(attrs, &p.OtherDetails); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	p.Variants = []Variant{}
	return &p, nil
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// jsonArg encodes v for a JSONB column; nil values become SQL NULL.
func jsonArg[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func attributesArg(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return jsonArg(&m)
}

func (p *Product) jsonArgs() (dims, weight, attrs any, err error) {
	if dims, err = jsonArg(p.Dimensions); err != nil {
		return
	}
	if weight, err = jsonArg(p.Weight); err != nil {
		return
	}
	attrs, err = attributesArg(p.OtherDetails)
	return
}

func (r *repository) Insert(ctx context.Context, q db.DBTX, p *Product) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "repository"), zap.String("method", "Insert"))

	dims, weight, attrs, err := p.jsonArgs()
	if err != nil {
		return err
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO products (id, title, description, image_urls, category, sub_category,
			price, tax_rate, charge_tax, dimensions, weight, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		p.ID, p.Title, p.Description, p.ImageURLs, p.Category, p.SubCategory,
		p.Price, p.TaxRate, p.ChargeTax, dims, weight, attrs,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrProductExists
		}
		log.Error("failed to insert product", zap.String("product_id", p.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) Update(ctx context.Context, q db.DBTX, p *Product) error {
	dims, weight, attrs, err := p.jsonArgs()
	if err != nil {
		return err
	}

	err = q.QueryRowContext(ctx, `
		UPDATE products SET
			title = $2, description = $3, image_urls = $4, category = $5, sub_category = $6,
			price = $7, tax_rate = $8, charge_tax = $9, dimensions = $10, weight = $11,
			attributes = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Title, p.Description, p.ImageURLs, p.Category, p.SubCategory,
		p.Price, p.TaxRate, p.ChargeTax, dims, weight, attrs,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	return err
}

func (r *repository) ReplaceVariants(ctx context.Context, q db.DBTX, productID string, variants []Variant) ([]Variant, error) {
	if _, err := q.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		return nil, err
	}

	sizes := make([]string, len(variants))
	quantities := make([]int64, len(variants))
	for i, v := range variants {
		sizes[i] = v.Size
		quantities[i] = int64(v.Quantity)
	}

	rows, err := q.QueryContext(ctx, `
		INSERT INTO product_variants (product_id, size, quantity)
		SELECT $1, s, qty FROM unnest($2::text[], $3::int[]) AS t(s, qty)
		RETURNING id, product_id, size, quantity`,
		productID, pq.Array(sizes), pq.Array(quantities))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Variant, 0, len(variants))
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Quantity); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, q db.DBTX, id string) (*Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	products := []Product{*p}
	if err := r.attachVariants(ctx, q, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (r *repository) attachVariants(ctx context.Context, q db.DBTX, products []Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, size, quantity
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Quantity); err != nil {
			return err
		}
		if i, ok := index[v.ProductID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	return rows.Err()
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (f ListFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR id ILIKE $%d)", len(args), len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Product, int, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "repository"), zap.String("method", "List"))

	where, args := f.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		log.Error("failed to count products", zap.Error(err))
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list products", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachVariants(ctx, r.db, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *repository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}
