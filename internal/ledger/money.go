package ledger

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FallbackGroupLabel is used when an expense carries no group name or note.
const FallbackGroupLabel = "Personal split"

const fallbackSlug = "general"

// nearZero is the tolerance under which a balance counts as settled.
const nearZero = 0.01

var nonSlugRuns = regexp.MustCompile(`[^a-z0-9]+`)

// Round rounds a monetary amount to 2 decimal places. NaN and infinities
// collapse to 0.
func Round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*100) / 100
}

// RoundCurrency coerces an arbitrary decoded JSON value to a rounded amount.
// Anything that is not a number comes back as 0; this never fails.
func RoundCurrency(v any) float64 {
	switch x := v.(type) {
	case float64:
		return Round(x)
	case float32:
		return Round(float64(x))
	case int:
		return Round(float64(x))
	case int64:
		return Round(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return Round(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return Round(f)
	default:
		return 0
	}
}

// NormalizeGroupLabel trims the raw label, substituting the fallback when
// nothing is left.
func NormalizeGroupLabel(raw string) string {
	if s := strings.TrimSpace(raw); s != "" {
		return s
	}
	return FallbackGroupLabel
}

// SlugifyGroupLabel derives the group identity from a label: lowercase, runs
// of non-alphanumerics collapsed to single dashes, trimmed. Differently cased
// labels collide into the same slug on purpose.
func SlugifyGroupLabel(raw string) string {
	s := nonSlugRuns.ReplaceAllString(strings.ToLower(NormalizeGroupLabel(raw)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// labelFromSlug reconstructs a displayable label for group entries whose
// label was lost ("road-trip" -> "Road Trip").
func labelFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
