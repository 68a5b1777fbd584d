package domain

import "strings"

// CanonicalStatus is the small fixed status vocabulary the reconciliation
// engine understands, as opposed to arbitrary carrier text.
type CanonicalStatus string

const (
	StatusShipped   CanonicalStatus = "shipped"
	StatusDelivered CanonicalStatus = "delivered"
	StatusReturned  CanonicalStatus = "returned"
	StatusCancelled CanonicalStatus = "cancelled"
	StatusUnknown   CanonicalStatus = "unknown"
)

// Keyword tables for status classification. Latin keywords are matched by
// containment against the normalized (lower-cased, diacritic-stripped) text;
// Arabic keywords are matched by containment against the raw text, since
// normalization would corrupt the script.
//
// The category order in Classify is significant: a carrier string mentioning
// both a refusal and a delivery attempt ("Colis refusé en livraison") must
// classify as returned, so returned is tested first.
var (
	returnedKeywords = []string{
		"retour",
		"retourne",
		"refuse",
		"refus",
		"renvoye",
		"renvoi",
		"rejete",
		"returned",
		"echec",
	}
	returnedKeywordsArabic = []string{
		"مرتجع",
		"راجع",
		"مرفوض",
		"رفض",
		"ارجاع",
	}

	deliveredKeywords = []string{
		"livree",
		"livre au client",
		"remis au client",
		"delivered",
		"recu par le client",
	}
	deliveredKeywordsArabic = []string{
		"تم التسليم",
		"تم التوصيل",
		"مسلم",
	}

	// Exact normalized carrier statuses that mean shipped even though they
	// contain no shipped keyword on their own.
	shippedExactStatuses = []string{
		"expediee",
		"expedie",
		"en livraison",
		"sortie en livraison",
		"vers wilaya",
		"vers station",
		"transfert",
		"en transit",
		"centre",
	}
	shippedKeywords = []string{
		"livraison",
		"expedi",
		"transit",
		"transfert",
		"ramass",
		"en route",
		"sorti",
		"shipped",
		"dispatch",
	}
	shippedKeywordsArabic = []string{
		"قيد التوصيل",
		"خرج للتوصيل",
		"شحن",
		"في الطريق",
	}

	cancelledKeywords = []string{
		"annule",
		"abandonne",
		"cancelled",
		"canceled",
		"supprime",
	}
	cancelledKeywordsArabic = []string{
		"ملغي",
		"الغاء",
		"ملغى",
	}
)

// Classify maps a raw carrier status string to a canonical status.
// It returns StatusUnknown when nothing matches; the caller must then
// leave the local status untouched.
func Classify(raw string) CanonicalStatus {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StatusUnknown
	}

	normalized := NormalizeText(trimmed)

	if matchesAny(normalized, returnedKeywords) || matchesAnyRaw(trimmed, returnedKeywordsArabic) {
		return StatusReturned
	}
	if matchesAny(normalized, deliveredKeywords) || matchesAnyRaw(trimmed, deliveredKeywordsArabic) {
		return StatusDelivered
	}
	if isExactStatus(normalized, shippedExactStatuses) ||
		matchesAny(normalized, shippedKeywords) ||
		matchesAnyRaw(trimmed, shippedKeywordsArabic) {
		return StatusShipped
	}
	if matchesAny(normalized, cancelledKeywords) || matchesAnyRaw(trimmed, cancelledKeywordsArabic) {
		return StatusCancelled
	}

	return StatusUnknown
}

func matchesAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

func matchesAnyRaw(raw string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(raw, kw) {
			return true
		}
	}
	return false
}

func isExactStatus(normalized string, statuses []string) bool {
	for _, s := range statuses {
		if normalized == s {
			return true
		}
	}
	return false
}
