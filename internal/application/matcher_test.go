package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oms-platform/reconciliation-service/internal/domain"
)

func newTestMatcher(products domain.ProductRepository) *CatalogMatcher {
	return NewCatalogMatcher(products, newTestLogger())
}

func TestMatchByCode(t *testing.T) {
	repo := &fakeProductRepo{
		findByCodeFn: func(_ context.Context, code string) (*domain.Product, error) {
			require.Equal(t, "PRD-001", code)
			return &domain.Product{
				ID:       "p1",
				Code:     "PRD-001",
				Name:     "T-shirt",
				Variants: []domain.Variant{{Name: "Rouge / M", Quantity: 5}},
			}, nil
		},
	}

	product, variant, err := newTestMatcher(repo).Match(context.Background(), domain.ExtractedProduct{
		Code: "PRD-001", Variant: "rouge / m", Quantity: 1,
	})

	require.NoError(t, err)
	require.Equal(t, "p1", product.ID)
	require.Equal(t, "Rouge / M", variant.Name)
}

func TestMatchByNameContainment(t *testing.T) {
	repo := &fakeProductRepo{
		findByNameContainsFn: func(_ context.Context, name string) ([]*domain.Product, error) {
			require.Equal(t, "T-shirt coton", name)
			return []*domain.Product{{
				ID:       "p2",
				Name:     "T-shirt",
				Variants: []domain.Variant{{Name: "Bleu / L", Quantity: 2}},
			}}, nil
		},
	}

	product, variant, err := newTestMatcher(repo).Match(context.Background(), domain.ExtractedProduct{
		Name: "T-shirt coton", Variant: "bleu", Quantity: 1,
	})

	require.NoError(t, err)
	require.Equal(t, "p2", product.ID)
	require.Equal(t, "Bleu / L", variant.Name)
}

func TestMatchCodeMissFallsBackToName(t *testing.T) {
	repo := &fakeProductRepo{
		findByCodeFn: func(_ context.Context, _ string) (*domain.Product, error) {
			return nil, domain.ErrProductNotFound
		},
		findByNameContainsFn: func(_ context.Context, _ string) ([]*domain.Product, error) {
			return []*domain.Product{{
				ID:       "p3",
				Name:     "Casquette",
				Variants: []domain.Variant{{Name: "default", Quantity: 1}},
			}}, nil
		},
	}

	product, _, err := newTestMatcher(repo).Match(context.Background(), domain.ExtractedProduct{
		Code: "STALE", Name: "Casquette", Variant: "default", Quantity: 1,
	})

	require.NoError(t, err)
	require.Equal(t, "p3", product.ID)
}

func TestMatchProductWithoutVariantIsNotFound(t *testing.T) {
	repo := &fakeProductRepo{
		findByNameContainsFn: func(_ context.Context, _ string) ([]*domain.Product, error) {
			return []*domain.Product{{
				ID:       "p4",
				Name:     "T-shirt",
				Variants: []domain.Variant{{Name: "Vert / XS", Quantity: 1}},
			}}, nil
		},
	}

	_, _, err := newTestMatcher(repo).Match(context.Background(), domain.ExtractedProduct{
		Name: "T-shirt", Variant: "Jaune", Quantity: 1,
	})

	require.ErrorIs(t, err, domain.ErrVariantNotFound)
}

func TestMatchNothingFound(t *testing.T) {
	repo := &fakeProductRepo{
		findByNameContainsFn: func(_ context.Context, _ string) ([]*domain.Product, error) {
			return nil, nil
		},
	}

	_, _, err := newTestMatcher(repo).Match(context.Background(), domain.ExtractedProduct{
		Name: "Inconnu", Variant: "default", Quantity: 1,
	})

	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestMatchCandidateNameVerifiedNormalized(t *testing.T) {
	// The store-side regex is raw text; a candidate whose name shares no
	// normalized containment with the search is rejected here.
	repo := &fakeProductRepo{
		findByNameContainsFn: func(_ context.Context, _ string) ([]*domain.Product, error) {
			return []*domain.Product{
				{ID: "p5", Name: "Montre", Variants: []domain.Variant{{Name: "default"}}},
				{ID: "p6", Name: "Tee-shirt été", Variants: []domain.Variant{{Name: "default"}}},
			}, nil
		},
	}

	product, _, err := newTestMatcher(repo).Match(context.Background(), domain.ExtractedProduct{
		Name: "tee-shirt ÉTÉ", Variant: "default", Quantity: 1,
	})

	require.NoError(t, err)
	require.Equal(t, "p6", product.ID)
}
