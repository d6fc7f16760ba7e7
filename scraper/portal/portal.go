// Package portal classifies URLs to supported portals, extracts portal-native
// listing IDs and builds portal search URLs.
package portal

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"emlak-ingest/models"
	"emlak-ingest/scraper/normalize"
)

var (
	// ErrUnknownPortal is a user input error; it is never retried.
	ErrUnknownPortal = errors.New("unknown portal")
	// ErrTemplateUnsupported means a portal cannot express the requested search.
	ErrTemplateUnsupported = errors.New("search template unsupported")
)

var domains = map[models.Portal]string{
	models.PortalSahibinden: "sahibinden.com",
	models.PortalHepsiemlak: "hepsiemlak.com",
	models.PortalEmlakjet:   "emlakjet.com",
}

var idPatterns = map[models.Portal]*regexp.Regexp{
	// https://www.sahibinden.com/ilan/emlak-konut-satilik-123456789/detay
	models.PortalSahibinden: regexp.MustCompile(`-(\d{5,})(?:/detay)?/?$`),
	// https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-1234
	models.PortalHepsiemlak: regexp.MustCompile(`/(\d+-\d+)/?$`),
	// https://www.emlakjet.com/ilan/kadikoy-satilik-3-1-daire-14563201
	models.PortalEmlakjet: regexp.MustCompile(`-(\d{5,})/?$`),
}

// Resolve classifies rawURL by host. It returns models.PortalUnknown when the
// host is not one of the known portal domains (or a subdomain of one).
func Resolve(rawURL string) models.Portal {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return models.PortalUnknown
	}
	host := strings.ToLower(u.Hostname())
	for p, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return p
		}
	}
	return models.PortalUnknown
}

// Parse maps a portal name to a Portal.
func Parse(name string) models.Portal {
	p := models.Portal(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := domains[p]; ok {
		return p
	}
	return models.PortalUnknown
}

// Domain returns the registrable domain of p.
func Domain(p models.Portal) string {
	return domains[p]
}

// ExtractID returns the portal-native listing ID from the URL path.
// It is best-effort: ok is false when no ID could be found.
func ExtractID(p models.Portal, rawURL string) (string, bool) {
	re, known := idPatterns[p]
	if !known {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(u.Path)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// Per-portal path segments for property kinds. A missing entry means the
// portal's search cannot be narrowed to that kind.
var kindPaths = map[models.Portal]map[models.PropertyKind]string{
	models.PortalSahibinden: {
		"":                    "emlak",
		models.KindApartment:  "satilik-daire",
		models.KindVilla:      "satilik-villa",
		models.KindLand:       "satilik-arsa",
		models.KindCommercial: "satilik-isyeri",
	},
	models.PortalHepsiemlak: {
		"":                    "satilik",
		models.KindApartment:  "satilik/daire",
		models.KindVilla:      "satilik/villa",
		models.KindLand:       "satilik/arsa",
		models.KindCommercial: "satilik/isyeri",
	},
	models.PortalEmlakjet: {
		"":                   "satilik-konut",
		models.KindApartment: "satilik-daire",
		models.KindVilla:     "satilik-villa",
		models.KindLand:      "satilik-arsa",
	},
}

// SearchURL synthesises the search-results URL for one portal and criteria.
func SearchURL(p models.Portal, c models.SearchCriteria) (string, error) {
	region := Slug(c.Region)
	if region == "" {
		return "", fmt.Errorf("%s: empty region: %w", p, ErrTemplateUnsupported)
	}
	kind := c.Kind
	if kind == models.KindOther {
		kind = ""
	}
	paths, known := kindPaths[p]
	if !known {
		return "", fmt.Errorf("%s: %w", p, ErrUnknownPortal)
	}
	path, ok := paths[kind]
	if !ok {
		return "", fmt.Errorf("%s: kind %q: %w", p, kind, ErrTemplateUnsupported)
	}

	q := url.Values{}
	var base string
	switch p {
	case models.PortalSahibinden:
		base = fmt.Sprintf("https://www.sahibinden.com/%s/%s", path, region)
		setPrice(q, "price_min", c.PriceMin)
		setPrice(q, "price_max", c.PriceMax)
	case models.PortalHepsiemlak:
		base = fmt.Sprintf("https://www.hepsiemlak.com/%s-%s", region, path)
		setPrice(q, "priceMin", c.PriceMin)
		setPrice(q, "priceMax", c.PriceMax)
	case models.PortalEmlakjet:
		base = fmt.Sprintf("https://www.emlakjet.com/%s/%s", path, region)
		setPrice(q, "min_price", c.PriceMin)
		setPrice(q, "max_price", c.PriceMax)
	}
	if len(q) == 0 {
		return base, nil
	}
	return base + "?" + q.Encode(), nil
}

func setPrice(q url.Values, key string, v float64) {
	if v > 0 {
		q.Set(key, strconv.FormatInt(int64(v), 10))
	}
}

var slugReplacer = strings.NewReplacer(
	"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u", "â", "a", "î", "i", "û", "u",
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a region token like "Kadıköy, İstanbul" to "kadikoy-istanbul".
func Slug(region string) string {
	s := slugReplacer.Replace(normalize.Lower(region))
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
