package domain

import (
	"errors"
	"strings"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Variant is one sellable variation of a product. Quantity may be negative:
// over-selling is a visible, expected state rather than an error.
type Variant struct {
	Name     string `bson:"name" json:"name"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// Product is a catalog entry with nested variants.
type Product struct {
	ID       string    `bson:"_id,omitempty" json:"id"`
	Code     string    `bson:"code,omitempty" json:"code,omitempty"`
	Name     string    `bson:"name" json:"name"`
	Variants []Variant `bson:"variants" json:"variants"`
}

// FindVariant returns the first variant matching the searched name using the
// fuzzy variant rules: exact normalized equality first, then bidirectional
// slash-part containment. The default variant name matches a product whose
// only variant is itself named default.
func (p *Product) FindVariant(searched string) (*Variant, bool) {
	searchedNorm := normalizeVariant(searched)
	if searchedNorm == "" {
		return nil, false
	}

	for i := range p.Variants {
		if normalizeVariant(p.Variants[i].Name) == searchedNorm {
			return &p.Variants[i], true
		}
	}

	searchedParts := SlashParts(searched)
	for i := range p.Variants {
		candidateNorm := normalizeVariant(p.Variants[i].Name)
		for _, part := range searchedParts {
			if candidateNorm != "" && containsEither(candidateNorm, part) {
				return &p.Variants[i], true
			}
		}
		for _, part := range SlashParts(p.Variants[i].Name) {
			if containsEither(searchedNorm, part) {
				return &p.Variants[i], true
			}
		}
	}

	return nil, false
}

func normalizeVariant(s string) string {
	if ContainsArabic(s) {
		return NormalizeArabic(s)
	}
	return NormalizeText(s)
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ExtractedProduct is the product information pulled out of an order row.
type ExtractedProduct struct {
	Code     string
	Name     string
	Variant  string
	Quantity int
}
