package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// ContainsArabic reports whether s contains at least one Arabic-script rune.
func ContainsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

// StripDiacritics removes combining marks from Latin text ("livrée" -> "livree").
// Arabic text is returned unchanged: NFD decomposition would strip the short
// vowels that distinguish Arabic words.
func StripDiacritics(s string) string {
	if ContainsArabic(s) {
		return s
	}
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText lower-cases, strips diacritics, replaces underscores with
// spaces and collapses whitespace. It is the comparison form for all Latin
// status, name and variant matching.
func NormalizeText(s string) string {
	s = StripDiacritics(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeArabic collapses whitespace without touching the script itself.
func NormalizeArabic(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeIdentifier is the comparison form for tracking numbers and
// references: trimmed, lower-cased, internal whitespace removed.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SlashParts splits a variant string on "/" and returns the trimmed,
// normalized non-empty parts ("Rouge / M" -> ["rouge", "m"]).
func SlashParts(s string) []string {
	raw := strings.Split(s, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = NormalizeText(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// SameText compares two strings in their normalized comparison form,
// using Arabic whitespace normalization when either side carries
// Arabic script.
func SameText(a, b string) bool {
	if ContainsArabic(a) || ContainsArabic(b) {
		return NormalizeArabic(a) == NormalizeArabic(b)
	}
	return NormalizeText(a) == NormalizeText(b)
}
