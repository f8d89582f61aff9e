package stock

import "github.com/shopspring/decimal"

// Key identifies one ledger row: a product in a given size.
type Key struct {
	ProductID string
	Size      string
}

// Variant is a resolved ledger row together with the parent product's
// current title and unit price.
type Variant struct {
	ID        int64
	ProductID string
	Size      string
	Quantity  int
	Title     string
	Price     decimal.Decimal
}

// ProductRef is the catalog data needed to price a size-less line item.
type ProductRef struct {
	ID    string
	Title string
	Price decimal.Decimal
}

type Outcome int

const (
	Applied Outcome = iota
	Missing
	Insufficient
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Missing:
		return "missing"
	case Insufficient:
		return "insufficient"
	default:
		return "unknown"
	}
}

func dedupe(keys []Key) (productIDs, sizes []string) {
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		productIDs = append(productIDs, k.ProductID)
		sizes = append(sizes, k.Size)
	}
	return productIDs, sizes
}
