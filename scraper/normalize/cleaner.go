// Package normalize turns raw portal text into canonical listing values.
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"emlak-ingest/models"
)

// DefaultCurrency is assumed when no currency marker is present.
const DefaultCurrency = "TRY"

var (
	// numberRegexp captures a number written with . or , separators
	numberRegexp = regexp.MustCompile(`\d[\d.,]*`)
	// scaledRegexp captures "1,5M", "500K", "2 milyon", "750 bin"
	scaledRegexp = regexp.MustCompile(`(\d[\d.,]*)\s*(milyon|milyar|mn|m|bin|k)\b`)
	// roomsRegexp captures Turkish room layouts such as "3+1" or "2,5 + 1"
	roomsRegexp = regexp.MustCompile(`(\d+(?:[.,]5)?)\s*\+\s*(\d+)`)

	currencyMarkers = []struct {
		re   *regexp.Regexp
		code string
	}{
		{regexp.MustCompile(`₺|\btl\b|\btry\b`), "TRY"},
		{regexp.MustCompile(`\$|\busd\b`), "USD"},
		{regexp.MustCompile(`€|\beur\b|\beuro\b`), "EUR"},
		{regexp.MustCompile(`£|\bgbp\b`), "GBP"},
	}

	scaleFactors = map[string]float64{
		"milyar": 1e9,
		"milyon": 1e6,
		"mn":     1e6,
		"m":      1e6,
		"bin":    1e3,
		"k":      1e3,
	}

	areaUnits = []string{"m²", "m2", "metrekare", "metre kare", "mt2", "sqm"}

	turkishLower = cases.Lower(language.Turkish)
)

// PriceText parses portal price text into an amount and a currency.
func PriceText(raw string) models.Price {
	return models.Price{
		Amount:   NormalizePriceText(raw),
		Currency: DetectCurrency(raw),
	}
}

// DetectCurrency returns the ISO code of the first currency marker in raw,
// or DefaultCurrency.
func DetectCurrency(raw string) string {
	s := strings.ToLower(raw)
	for _, m := range currencyMarkers {
		if m.re.MatchString(s) {
			return m.code
		}
	}
	return DefaultCurrency
}

// NormalizePriceText converts price text to a number. Examples:
//
//	"2.500.000 TL" → 2500000
//	"1,5M TL"      → 1500000
//	"500K"         → 500000
//
// Unparseable text yields 0.
func NormalizePriceText(raw string) float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, m := range currencyMarkers {
		s = m.re.ReplaceAllString(s, " ")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// A scale suffix makes either separator a decimal mark.
	if match := scaledRegexp.FindStringSubmatch(s); len(match) == 3 {
		num := strings.ReplaceAll(match[1], ",", ".")
		if strings.Count(num, ".") > 1 {
			num = strings.Replace(num, ".", "", strings.Count(num, ".")-1)
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		return v * scaleFactors[match[2]]
	}

	return parseLocaleNumber(numberRegexp.FindString(s))
}

// NormalizeAreaText converts area text such as "150 m²" or "1.200m2" to square
// meters. Unparseable text yields 0.
func NormalizeAreaText(raw string) float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, unit := range areaUnits {
		s = strings.ReplaceAll(s, unit, " ")
	}
	return parseLocaleNumber(numberRegexp.FindString(s))
}

// parseLocaleNumber reads "." as a thousands separator and "," as the decimal mark.
func parseLocaleNumber(num string) float64 {
	if num == "" {
		return 0
	}
	num = strings.ReplaceAll(num, ".", "")
	num = strings.Replace(num, ",", ".", 1)
	num = strings.ReplaceAll(num, ",", "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return v
}

var kindVocabulary = []struct {
	kind     models.PropertyKind
	keywords []string
}{
	{models.KindLand, []string{"arsa", "tarla", "arazi", "bağ-bahçe", "bag-bahce", "land"}},
	{models.KindCommercial, []string{"dükkan", "dukkan", "işyeri", "isyeri", "ofis", "büro", "buro", "mağaza", "magaza", "depo", "plaza", "commercial", "office", "shop"}},
	{models.KindVilla, []string{"villa", "müstakil", "mustakil", "yalı", "yali"}},
	{models.KindApartment, []string{"daire", "apartman", "rezidans", "residence", "konut", "apartment", "flat"}},
}

// InferKind classifies a listing from keywords in its title and URL.
// No match yields models.KindOther, which callers treat as unclassified.
func InferKind(title, rawURL string) models.PropertyKind {
	text := Lower(title + " " + rawURL)
	for _, entry := range kindVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.kind
			}
		}
	}
	return models.KindOther
}

// RoomsToken extracts a room layout token like "3+1" from free text.
func RoomsToken(raw string) string {
	m := roomsRegexp.FindStringSubmatch(raw)
	if len(m) != 3 {
		return CleanText(raw)
	}
	return m[1] + "+" + m[2]
}

// CleanText strips leading/trailing whitespace and collapses internal whitespace.
func CleanText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// Lower lower-cases with Turkish rules (I → ı, İ → i).
func Lower(s string) string {
	return turkishLower.String(s)
}

// FeatureSet trims, drops empties and returns a sorted, duplicate-free slice.
func FeatureSet(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		f = CleanText(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

var locationSeparators = regexp.MustCompile(`\s*(?:\n|/|,|>|\s-\s)\s*`)

// SplitLocation splits "İstanbul / Kadıköy / Caferağa Mah." or multi-line
// location text into cleaned parts.
func SplitLocation(raw string) []string {
	parts := locationSeparators.Split(strings.TrimSpace(raw), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanText(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LocationFromParts maps ordered parts (city, district, neighborhood) onto a
// Location. Missing parts stay empty.
func LocationFromParts(parts []string) models.Location {
	var loc models.Location
	if len(parts) > 0 {
		loc.City = parts[0]
	}
	if len(parts) > 1 {
		loc.District = parts[1]
	}
	if len(parts) > 2 {
		loc.Neighborhood = parts[2]
	}
	return loc
}

// UniqueURLs drops empty, inline (data:) and repeated URLs, keeping order.
func UniqueURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "data:") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
