package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Prices are JSON numbers wherever a product is encoded, cache entries included
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultCategory is assigned to products created without a category
const DefaultCategory = "Без категории"

// Product represents an item in the storefront catalog
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Photo       string          `json:"photo,omitempty" db:"photo"`
	Category    string          `json:"category" db:"category"`
}

// Available reports whether the product is visible in the public listing
func (p Product) Available() bool {
	return p.Quantity > 0
}

// ProductChanges carries a partial update; nil fields keep their current value
type ProductChanges struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Category    *string
	Photo       *string
}

// Apply copies every set field onto p
func (c ProductChanges) Apply(p *Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.Quantity != nil {
		p.Quantity = *c.Quantity
	}
	if c.Category != nil {
		p.Category = *c.Category
	}
	if c.Photo != nil {
		p.Photo = *c.Photo
	}
}
