package product

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ImportMode string

const (
	ImportSkip      ImportMode = "skip"
	ImportOverwrite ImportMode = "overwrite"
)

func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImportSkip:
		return ImportSkip, nil
	case ImportOverwrite:
		return ImportOverwrite, nil
	}
	return "", invalid("importMode must be %q or %q", ImportSkip, ImportOverwrite)
}

type ImportResult struct {
	Parsed  int      `json:"parsed"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed"`
}

// Columns mapped onto product fields; anything else lands in OtherDetails.
var baseColumns = map[string]bool{
	"id": true, "title": true, "description": true, "imageUrls": true,
	"category": true, "subCategory": true, "price": true, "taxRate": true, "chargeTax": true,
	"dimension_height": true, "dimension_width": true, "dimension_depth": true,
	"weight_value": true, "weight_unit": true,
	"size": true, "quantity": true,
}

type csvRow map[string]string

func (r csvRow) str(col string) *string {
	v := strings.TrimSpace(r[col])
	if v == "" {
		return nil
	}
	return &v
}

func (r csvRow) num(col string) *float64 {
	s := r.str(col)
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func (r csvRow) product() *Product {
	p := &Product{
		ID:           strings.TrimSpace(r["id"]),
		Description:  r.str("description"),
		ImageURLs:    []string{},
		SubCategory:  r.str("subCategory"),
		Dimensions:   &Dimensions{Height: r.num("dimension_height"), Width: r.num("dimension_width"), Depth: r.num("dimension_depth")},
		Weight:       &Weight{Value: r.num("weight_value"), Unit: r.str("weight_unit")},
		OtherDetails: map[string]any{},
	}
	if t := r.str("title"); t != nil {
		p.Title = *t
	}
	if c := r.str("category"); c != nil {
		p.Category = *c
	}
	if urls := r.str("imageUrls"); urls != nil {
		for _, u := range strings.Split(*urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				p.ImageURLs = append(p.ImageURLs, u)
			}
		}
	}
	if s := r.str("price"); s != nil {
		p.Price, _ = decimal.NewFromString(*s)
	}
	if s := r.str("taxRate"); s != nil {
		if d, err := decimal.NewFromString(*s); err == nil {
			p.TaxRate = decimal.NewNullDecimal(d)
		}
	}
	if s := r.str("chargeTax"); s != nil {
		p.ChargeTax = strings.EqualFold(*s, "true")
	}
	for col, v := range r {
		if baseColumns[col] {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			p.OtherDetails[col] = v
		}
	}
	return p
}

func (r csvRow) variant() (Variant, bool) {
	size := r.str("size")
	if size == nil {
		return Variant{}, false
	}
	qty, err := strconv.Atoi(strings.TrimSpace(r["quantity"]))
	if err != nil {
		return Variant{}, false
	}
	return Variant{Size: *size, Quantity: qty}, true
}

// parseCSV groups rows by product id, keeping first-seen order. The first
// row of a product supplies its fields; every row may add a variant.
func parseCSV(r io.Reader) ([]*Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, invalid("CSV file is empty")
	}
	if err != nil {
		return nil, invalid("read CSV header: %v", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var (
		order    []*Product
		byID     = map[string]*Product{}
		sizeSeen = map[string]map[string]bool{}
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalid("read CSV: %v", err)
		}

		row := make(csvRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		id := strings.TrimSpace(row["id"])
		if id == "" {
			continue
		}
		p, ok := byID[id]
		if !ok {
			p = row.product()
			byID[id] = p
			sizeSeen[id] = map[string]bool{}
			order = append(order, p)
		}
		if v, ok := row.variant(); ok && !sizeSeen[id][v.Size] {
			sizeSeen[id][v.Size] = true
			p.Variants = append(p.Variants, v)
		}
	}
	return order, nil
}

// ImportCSV creates unseen products and, in overwrite mode, replaces
// existing ones with their variants. Each product is written in its own
// transaction so one bad row never rolls back the rest.
func (s *service) ImportCSV(ctx context.Context, r io.Reader, mode ImportMode) (*ImportResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ImportCSV"),
		zap.String("mode", string(mode)),
	)

	products, err := parseCSV(r)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Parsed: len(products), Failed: []string{}}
	if len(products) == 0 {
		return res, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	existing, err := s.repo.ExistingIDs(ctx, ids)
	if err != nil {
		log.Error("failed to look up existing products", zap.Error(err))
		return nil, err
	}

	for _, p := range products {
		if existing[p.ID] && mode != ImportOverwrite {
			res.Skipped++
			continue
		}

		err := s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
			if existing[p.ID] {
				if err := s.repo.Update(ctx, tx, p); err != nil {
					return err
				}
			} else if err := s.repo.Insert(ctx, tx, p); err != nil {
				return err
			}
			_, err := s.repo.ReplaceVariants(ctx, tx, p.ID, p.Variants)
			return err
		})
		if err != nil {
			log.Warn("product import failed", zap.String("product_id", p.ID), zap.Error(err))
			res.Failed = append(res.Failed, fmt.Sprintf("%s: %v", p.ID, err))
			continue
		}

		if existing[p.ID] {
			res.Updated++
		} else {
			res.Created++
		}
	}

	log.Info("csv import finished",
		zap.Int("parsed", res.Parsed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}
