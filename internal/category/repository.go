package category

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"techwire-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Repository reads the taxonomy straight off the catalog; categories exist
// only as long as some product carries them.
type Repository interface {
	List(ctx context.Context, filter string, limit, offset int) ([]Category, int, error)
	Subcategories(ctx context.Context, categories []string) (map[string][]Subcategory, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filter string, limit, offset int) ([]Category, int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "List"),
		zap.String("filter", filter),
		zap.Int("limit", limit),
		zap.Int("offset", offset),
	)

	query := `
		SELECT category, COUNT(*) AS product_count, COUNT(*) OVER () AS total
		FROM products
	`
	var where []string
	var args []any

	if filter != "" {
		where = append(where, fmt.Sprintf("category ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter+"%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " GROUP BY category ORDER BY category ASC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("list categories failed", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []Category
		total int
	)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.ProductCount, &total); err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) Subcategories(ctx context.Context, categories []string) (map[string][]Subcategory, error) {
	out := make(map[string][]Subcategory, len(categories))
	if len(categories) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, sub_category, COUNT(*)
		FROM products
		WHERE category = ANY($1) AND sub_category IS NOT NULL AND sub_category <> ''
		GROUP BY category, sub_category
		ORDER BY sub_category ASC
	`, pq.Array(categories))
	if err != nil {
		return nil, fmt.Errorf("query subcategories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cat string
			s   Subcategory
		)
		if err := rows.Scan(&cat, &s.Name, &s.ProductCount); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out[cat] = append(out[cat], s)
	}
	return out, rows.Err()
}
