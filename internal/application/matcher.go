package application

import (
	"context"
	"strings"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
)

// CatalogMatcher resolves extracted product info to a concrete catalog
// product + variant. Resolution order: exact code match, then
// name-containment candidates; within a product, variants are matched by
// the fuzzy rules in Product.FindVariant. No product counts as found
// without a matching variant.
type CatalogMatcher struct {
	products domain.ProductRepository
	logger   *logging.Logger
}

// NewCatalogMatcher creates a catalog matcher.
func NewCatalogMatcher(products domain.ProductRepository, logger *logging.Logger) *CatalogMatcher {
	return &CatalogMatcher{
		products: products,
		logger:   logger.WithComponent("catalog-matcher"),
	}
}

// Match resolves a product + variant, or domain.ErrProductNotFound /
// domain.ErrVariantNotFound when nothing in the catalog fits.
func (m *CatalogMatcher) Match(ctx context.Context, extracted domain.ExtractedProduct) (*domain.Product, *domain.Variant, error) {
	if extracted.Code != "" {
		product, err := m.products.FindByCode(ctx, extracted.Code)
		if err == nil && product != nil {
			if variant, ok := product.FindVariant(extracted.Variant); ok {
				return product, variant, nil
			}
			// A code hit without a variant hit still falls through to
			// the name search: the code may be stale while the name
			// resolves to the right product.
		}
	}

	if extracted.Name == "" {
		return nil, nil, domain.ErrProductNotFound
	}

	candidates, err := m.products.FindByNameContains(ctx, extracted.Name)
	if err != nil {
		return nil, nil, err
	}

	foundProduct := false
	for _, product := range candidates {
		if !nameMatches(product.Name, extracted.Name) {
			continue
		}
		foundProduct = true
		if variant, ok := product.FindVariant(extracted.Variant); ok {
			return product, variant, nil
		}
	}

	if foundProduct {
		return nil, nil, domain.ErrVariantNotFound
	}
	return nil, nil, domain.ErrProductNotFound
}

// nameMatches re-checks candidates in their normalized comparison form:
// the store-side regex match is raw text, so diacritic differences are
// settled here.
func nameMatches(candidate, searched string) bool {
	var a, b string
	if domain.ContainsArabic(candidate) || domain.ContainsArabic(searched) {
		a, b = domain.NormalizeArabic(candidate), domain.NormalizeArabic(searched)
	} else {
		a, b = domain.NormalizeText(candidate), domain.NormalizeText(searched)
	}
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
