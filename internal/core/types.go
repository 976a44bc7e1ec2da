// Package core provides the business logic for catalog ingestion and caching.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Default values applied when a source cell is missing or unusable.
const (
	DefaultName     = "Без названия"
	DefaultCategory = "Без категории"
)

// MaxStock is the largest stock count a product can hold (a 32-bit column).
const MaxStock = math.MaxInt32

// maxPrice is the exclusive upper price bound: numeric(14, 2).
var maxPrice = decimal.New(1, 12)

// PriceInRange reports whether d is non-negative and fits a stored price
// once rounded to cents.
func PriceInRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Round(2).LessThan(maxPrice)
}

// StockInRange reports whether n is a storable stock count.
func StockInRange(n int) bool {
	return n >= 0 && n <= MaxStock
}

// Product is the canonical catalog entity.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Tags        []string        `json:"tags"`
	IsVisible   bool            `json:"is_visible"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// CheckRange returns ErrInvalidInput when p's price or stock cannot be stored.
func (p Product) CheckRange() error {
	if !PriceInRange(p.Price) {
		return invalidf("product %s: price %s out of range", p.ID, p.Price)
	}
	if !StockInRange(p.Stock) {
		return invalidf("product %s: stock %d out of range", p.ID, p.Stock)
	}
	return nil
}

// ProductPatch is a merge-patch for a product. Nil fields keep the current value.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.Description == nil &&
		p.ImageURL == nil && p.Category == nil && p.Stock == nil && p.Tags == nil
}

// Apply returns a copy of prod with the patch fields applied.
func (p ProductPatch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.ImageURL != nil {
		prod.ImageURL = *p.ImageURL
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
	if p.Tags != nil {
		prod.Tags = append([]string(nil), p.Tags...)
	}
	return prod
}

// PriceMode selects how BulkAdjustPrice interprets its value.
type PriceMode string

const (
	PricePercent PriceMode = "percent"
	PriceFixed   PriceMode = "fixed"
)

// ParsePriceMode converts user input into a PriceMode.
func ParsePriceMode(s string) (PriceMode, bool) {
	switch PriceMode(s) {
	case PricePercent, PriceFixed:
		return PriceMode(s), true
	default:
		return "", false
	}
}

// ImportResult summarizes one ingestion run.
type ImportResult struct {
	ImportID   string        `json:"import_id"`
	Source     string        `json:"source"`
	Inserted   int           `json:"inserted"`
	Degraded   int           `json:"degraded_rows"`
	Empty      bool          `json:"empty"`
	Columns    []string      `json:"mapped_fields"`
	ProductIDs []string      `json:"product_ids,omitempty"`
	Duration   time.Duration `json:"duration"`
}
