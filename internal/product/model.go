package product

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Variant struct {
	ID        int64  `json:"id"`
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type Dimensions struct {
	Height *float64 `json:"height"`
	Width  *float64 `json:"width"`
	Depth  *float64 `json:"depth"`
}

type Weight struct {
	Value *float64 `json:"value"`
	Unit  *string  `json:"unit"`
}

type Product struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  *string             `json:"description"`
	ImageURLs    pq.StringArray      `json:"imageUrls"`
	Category     string              `json:"category"`
	SubCategory  *string             `json:"subCategory"`
	Price        decimal.Decimal     `json:"price"`
	TaxRate      decimal.NullDecimal `json:"taxRate"`
	ChargeTax    bool                `json:"chargeTax"`
	Dimensions   *Dimensions         `json:"dimensions"`
	Weight       *Weight             `json:"weight"`
	OtherDetails map[string]any      `json:"otherDetails"`
	Variants     []Variant           `json:"variants"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

type VariantInput struct {
	Size     string `json:"size"`
	Quantity *int   `json:"quantity"`
}

type CreateInput struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  *string             `json:"description"`
	ImageURLs    []string            `json:"imageUrls"`
	Category     string              `json:"category"`
	SubCategory  *string             `json:"subCategory"`
	Price        decimal.Decimal     `json:"price"`
	TaxRate      decimal.NullDecimal `json:"taxRate"`
	ChargeTax    bool                `json:"chargeTax"`
	Dimensions   *Dimensions         `json:"dimensions"`
	Weight       *Weight             `json:"weight"`
	OtherDetails map[string]any      `json:"otherDetails"`
	Variants     []VariantInput      `json:"variants"`
}

// UpdateInput changes only the fields that are set. A non-nil Variants
// replaces the whole variant set.
type UpdateInput struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	ImageURLs    *[]string            `json:"imageUrls"`
	Category     *string              `json:"category"`
	SubCategory  *string              `json:"subCategory"`
	Price        *decimal.Decimal     `json:"price"`
	TaxRate      *decimal.NullDecimal `json:"taxRate"`
	ChargeTax    *bool                `json:"chargeTax"`
	Dimensions   *Dimensions          `json:"dimensions"`
	Weight       *Weight              `json:"weight"`
	OtherDetails map[string]any       `json:"otherDetails"`
	Variants     *[]VariantInput      `json:"variants"`
}

// Image is an uploaded product picture awaiting storage.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ListFilter struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

type Page struct {
	Products      []Product `json:"products"`
	TotalProducts int       `json:"totalProducts"`
	TotalPages    int       `json:"totalPages"`
	CurrentPage   int       `json:"currentPage"`
}
