package category

import (
	"context"
	"strings"

	"techwire-be/internal/logger"
	"techwire-be/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	// List pages through the categories in use, each with its subcategories.
	List(ctx context.Context, filter string, page, limit int) (*Page, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, filter string, page, limit int) (*Page, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "List"),
	)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = utils.DefaultPageLimit
	}
	if limit > utils.MaxPageLimit {
		limit = utils.MaxPageLimit
	}

	categories, total, err := s.repo.List(ctx, strings.TrimSpace(filter), limit, (page-1)*limit)
	if err != nil {
		log.Error("failed to list categories", zap.Error(err))
		return nil, err
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	subs, err := s.repo.Subcategories(ctx, names)
	if err != nil {
		log.Error("failed to list subcategories", zap.Error(err))
		return nil, err
	}

	for i := range categories {
		categories[i].Subcategories = subs[categories[i].Name]
		if categories[i].Subcategories == nil {
			categories[i].Subcategories = []Subcategory{}
		}
	}
	if categories == nil {
		categories = []Category{}
	}

	return &Page{
		Categories:      categories,
		TotalCategories: total,
		TotalPages:      utils.TotalPages(total, limit),
		CurrentPage:     page,
	}, nil
}
