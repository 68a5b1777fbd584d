package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultVariantName is the variant used when an order row carries no
// meaningful variant information.
const DefaultVariantName = "default"

// Header name variants accepted for each extracted field. Rows come from a
// user-managed spreadsheet so header spelling is not stable.
var (
	productIDHeaders   = []string{"product id", "id produit","code produit", "sku", "ref produit", "reference produit"}
	productNameHeaders = []string{"product name", "nom du produit", "nom produit", "produit nom"}
	variantHeaders     = []string{"variant", "variante", "declinaison", "taille couleur"}
	labelHeaders       = []string{"produit", "product", "article", "designation", "product label"}
	quantityHeaders    = []string{"quantity", "quantite", "qty", "qte", "nombre", "nb"}
)

var (
	trailingParens   = regexp.MustCompile(`^(.*?)\s*\(([^()]+)\)\s*$`)
	trailingBrackets = regexp.MustCompile(`^(.*?)\s*\[([^\[\]]+)\]\s*$`)
	nonDigits        = regexp.MustCompile(`[^0-9]`)
)

var meaninglessVariants = map[string]bool{
	"":         true,
	"default":  true,
	"defaut":   true,
	"n/a":      true,
	"na":       true,
	"none":     true,
	"aucun":    true,
	"aucune":   true,
	"standard": true,
	"-":        true,
}

// IsMeaningfulVariant reports whether a candidate variant string carries
// real variant information.
func IsMeaningfulVariant(s string) bool {
	return !meaninglessVariants[NormalizeText(s)]
}

// ExtractProduct pulls product identification out of a free-text order row.
// Strategies in priority order: an explicit product-ID field, explicit
// name+variant fields, then splitting a single product label.
func ExtractProduct(row map[string]string) ExtractedProduct {
	extracted := ExtractedProduct{
		Variant:  DefaultVariantName,
		Quantity: extractQuantity(row),
	}

	if code := lookupField(row, productIDHeaders); code != "" {
		extracted.Code = code
		if variant := lookupField(row, variantHeaders); IsMeaningfulVariant(variant) {
			extracted.Variant = strings.TrimSpace(variant)
		}
		return extracted
	}

	name := lookupField(row, productNameHeaders)
	variant := lookupField(row, variantHeaders)
	if name != "" && IsMeaningfulVariant(variant) {
		extracted.Name = name
		extracted.Variant = strings.TrimSpace(variant)
		return extracted
	}

	label := lookupField(row, labelHeaders)
	if label == "" {
		label = name
	}
	base, splitVariant := SplitLabel(label)
	extracted.Name = base
	extracted.Variant = splitVariant
	return extracted
}

// SplitLabel splits a free-text product label into base name + variant.
// Tried in order: trailing parenthesis group, trailing bracket group, last
// slash segment, then a dash/colon/pipe separator. A candidate variant that
// fails the meaningful-variant filter falls through to the next strategy;
// when everything fails the variant is the literal "default".
func SplitLabel(label string) (string, string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", DefaultVariantName
	}

	if m := trailingParens.FindStringSubmatch(label); m != nil {
		if base, variant := strings.TrimSpace(m[1]), strings.TrimSpace(m[2]); base != "" && IsMeaningfulVariant(variant) {
			return base, variant
		}
	}

	if m := trailingBrackets.FindStringSubmatch(label); m != nil {
		if base, variant := strings.TrimSpace(m[1]), strings.TrimSpace(m[2]); base != "" && IsMeaningfulVariant(variant) {
			return base, variant
		}
	}

	if idx := strings.LastIndex(label, "/"); idx > 0 {
		base := strings.TrimSpace(label[:idx])
		variant := strings.TrimSpace(label[idx+1:])
		if base != "" && IsMeaningfulVariant(variant) {
			return base, variant
		}
	}

	for _, sep := range []string{" - ", ":", "|"} {
		if idx := strings.LastIndex(label, sep); idx > 0 {
			base := strings.TrimSpace(label[:idx])
			variant := strings.TrimSpace(label[idx+len(sep):])
			if base != "" && IsMeaningfulVariant(variant) {
				return base, variant
			}
		}
	}

	return label, DefaultVariantName
}

func lookupField(row map[string]string, headers []string) string {
	if len(row) == 0 {
		return ""
	}
	// Header candidates are tried in priority order so a row carrying
	// several matching columns resolves deterministically.
	for _, h := range headers {
		for key, value := range row {
			if NormalizeText(key) == h {
				if v := strings.TrimSpace(value); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func extractQuantity(row map[string]string) int {
	raw := lookupField(row, quantityHeaders)
	digits := nonDigits.ReplaceAllString(raw, "")
	qty, err := strconv.Atoi(digits)
	if err != nil || qty < 1 {
		return 1
	}
	return qty
}
