package product

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/storage"
	"techwire-be/internal/utils"

	"go.uber.org/zap"
)

const (
	MaxImages     = 3
	MaxImageBytes = 5 << 20
)

type Service interface {
	Create(ctx context.Context, in CreateInput, images []Image) (*Product, error)
	Update(ctx context.Context, id string, in UpdateInput) (*Product, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, page, limit int) (*Page, error)
	Search(ctx context.Context, query string, page, limit int) (*Page, error)
	ByCategory(ctx context.Context, category string, page, limit int) (*Page, error)
	ImportCSV(ctx context.Context, r io.Reader, mode ImportMode) (*ImportResult, error)
}

type service struct {
	repo   Repository
	txm    db.TxManager
	blobs  storage.Store
	txOpts db.TxOptions
}

func NewService(repo Repository, txm db.TxManager, blobs storage.Store) Service {
	return &service{
		repo:   repo,
		txm:    txm,
		blobs:  blobs,
		txOpts: db.TxOptions{Isolation: sql.LevelReadCommitted, Timeout: 10 * time.Second},
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func validateVariants(in []VariantInput) ([]Variant, error) {
	if len(in) == 0 {
		return nil, invalid("at least one variant is required")
	}
	seen := make(map[string]bool, len(in))
	out := make([]Variant, 0, len(in))
	for _, v := range in {
		size := strings.TrimSpace(v.Size)
		if size == "" || v.Quantity == nil {
			return nil, invalid("each variant must have a 'size' and 'quantity'")
		}
		if *v.Quantity < 0 {
			return nil, invalid("variant %q quantity cannot be negative", size)
		}
		if seen[size] {
			return nil, invalid("duplicate variant size %q", size)
		}
		seen[size] = true
		out = append(out, Variant{Size: size, Quantity: *v.Quantity})
	}
	return out, nil
}

func (in CreateInput) toProduct() (*Product, []Variant, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if in.ID == "" || in.Title == "" || in.Category == "" || !in.Price.IsPositive() {
		return nil, nil, invalid("missing required fields: id, title, category, price, and at least one variant are required")
	}
	variants, err := validateVariants(in.Variants)
	if err != nil {
		return nil, nil, err
	}

	images := in.ImageURLs
	if images == nil {
		images = []string{}
	}
	return &Product{
		ID:           in.ID,
		Title:        in.Title,
		Description:  in.Description,
		ImageURLs:    images,
		Category:     in.Category,
		SubCategory:  in.SubCategory,
		Price:        in.Price,
		TaxRate:      in.TaxRate,
		ChargeTax:    in.ChargeTax,
		Dimensions:   in.Dimensions,
		Weight:       in.Weight,
		OtherDetails: in.OtherDetails,
	}, variants, nil
}

func checkImages(images []Image) error {
	if len(images) > MaxImages {
		return fmt.Errorf("%w: at most %d images are allowed", ErrInvalidImage, MaxImages)
	}
	for _, img := range images {
		switch img.ContentType {
		case "image/jpeg", "image/jpg", "image/png":
		default:
			return fmt.Errorf("%w: %s: only JPG, JPEG, and PNG are allowed", ErrInvalidImage, img.Filename)
		}
		if len(img.Data) > MaxImageBytes {
			return fmt.Errorf("%w: %s exceeds 5 MB", ErrInvalidImage, img.Filename)
		}
	}
	return nil
}

func (s *service) Create(ctx context.Context, in CreateInput, images []Image) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Create"),
		zap.String("product_id", in.ID),
	)

	p, variants, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	if err := checkImages(images); err != nil {
		return nil, err
	}

	// Blobs are written before the row; a failed insert leaves them orphaned.
	for _, img := range images {
		url, _, err := s.blobs.Store(ctx, img.Data, p.ID+"_"+img.Filename, img.ContentType)
		if err != nil {
			log.Error("failed to store product image", zap.String("file", img.Filename), zap.Error(err))
			return nil, fmt.Errorf("store image %s: %w", img.Filename, err)
		}
		p.ImageURLs = append(p.ImageURLs, url)
	}

	err = s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		if err := s.repo.Insert(ctx, tx, p); err != nil {
			return err
		}
		created, err := s.repo.ReplaceVariants(ctx, tx, p.ID, variants)
		p.Variants = created
		return err
	})
	if err != nil {
		log.Error("failed to create product", zap.Error(err))
		return nil, err
	}

	log.Info("product created", zap.Int("variants", len(p.Variants)), zap.Int("images", len(images)))
	return p, nil
}

func (in UpdateInput) apply(p *Product) error {
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return invalid("title cannot be empty")
		}
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Category != nil {
		if strings.TrimSpace(*in.Category) == "" {
			return invalid("category cannot be empty")
		}
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return invalid("price must be positive")
		}
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.ImageURLs != nil {
		p.ImageURLs = *in.ImageURLs
	}
	if in.SubCategory != nil {
		p.SubCategory = in.SubCategory
	}
	if in.TaxRate != nil {
		p.TaxRate = *in.TaxRate
	}
	if in.ChargeTax != nil {
		p.ChargeTax = *in.ChargeTax
	}
	if in.Dimensions != nil {
		p.Dimensions = in.Dimensions
	}
	if in.Weight != nil {
		p.Weight = in.Weight
	}
	if in.OtherDetails != nil {
		p.OtherDetails = in.OtherDetails
	}
	return nil
}

func (s *service) Update(ctx context.Context, id string, in UpdateInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Update"),
		zap.String("product_id", id),
	)

	var variants []Variant
	if in.Variants != nil {
		var err error
		if variants, err = validateVariants(*in.Variants); err != nil {
			return nil, err
		}
	}

	var updated *Product
	err := s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		p, err := s.repo.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := in.apply(p); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, p); err != nil {
			return err
		}
		if in.Variants != nil {
			if p.Variants, err = s.repo.ReplaceVariants(ctx, tx, id, variants); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		log.Warn("product update failed", zap.Error(err))
		return nil, err
	}

	log.Info("product updated", zap.Bool("variants_replaced", in.Variants != nil))
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.FromCtx(ctx).Info("product deleted", zap.String("product_id", id))
	return nil
}

func (s *service) Get(ctx context.Context, id string) (*Product, error) {
	var p *Product
	err := s.txm.WithinTx(ctx, db.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true},
		func(ctx context.Context, tx db.DBTX) (err error) {
			p, err = s.repo.Get(ctx, tx, id)
			return err
		})
	return p, err
}

func (s *service) List(ctx context.Context, page, limit int) (*Page, error) {
	return s.page(ctx, ListFilter{}, page, limit)
}

func (s *service) Search(ctx context.Context, query string, page, limit int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("query parameter is required")
	}
	return s.page(ctx, ListFilter{Search: query}, page, limit)
}

func (s *service) ByCategory(ctx context.Context, category string, page, limit int) (*Page, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, invalid("category name is required")
	}
	return s.page(ctx, ListFilter{Category: category}, page, limit)
}

func (s *service) page(ctx context.Context, f ListFilter, page, limit int) (*Page, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "List"))
	start := time.Now()

	/* ---------- INPUT NORMALIZATION ---------- */

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = utils.DefaultPageLimit
	} else if limit > utils.MaxPageLimit {
		limit = utils.MaxPageLimit
	}
	f.Limit, f.Offset = limit, (page-1)*limit

	/* ---------- FETCH DATA ---------- */

	products, total, err := s.repo.List(ctx, f)
	if err != nil {
		log.Error("failed to fetch product list", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	log.Debug("product list fetched",
		zap.String("search", f.Search),
		zap.String("category", f.Category),
		zap.Int("count", len(products)),
		zap.Int("total", total),
		zap.Duration("duration", time.Since(start)),
	)

	return &Page{
		Products:      products,
		TotalProducts: total,
		TotalPages:    utils.TotalPages(total, limit),
		CurrentPage:   page,
	}, nil
}
