package browser

import (
	"context"
	"sort"
	"strings"

	"emlak-ingest/scraper/normalize"
)

// FirstText returns the cleaned text of the first selector that matches.
// A missing field yields "".
func FirstText(ctx context.Context, r PageReader, selectors ...string) string {
	for _, sel := range selectors {
		if v, err := r.Text(ctx, sel); err == nil {
			if v = normalize.CleanText(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// FirstAttr returns attribute name of the first selector that has it.
func FirstAttr(ctx context.Context, r PageReader, name string, selectors ...string) string {
	for _, sel := range selectors {
		if v, err := r.Attr(ctx, sel, name); err == nil {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Texts returns the cleaned, non-empty texts of every element matching selector.
func Texts(ctx context.Context, r PageReader, selector string) []string {
	els, err := r.All(ctx, selector)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		if v, err := el.Text(ctx, ""); err == nil {
			if v = normalize.CleanText(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Attrs returns attribute name of every element matching selector, trying
// each name in turn (e.g. "data-src" before "src").
func Attrs(ctx context.Context, r PageReader, selector string, names ...string) []string {
	els, err := r.All(ctx, selector)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		for _, name := range names {
			if v, err := el.Attr(ctx, "", name); err == nil && strings.TrimSpace(v) != "" {
				out = append(out, strings.TrimSpace(v))
				break
			}
		}
	}
	return out
}

// Labeled reads label/value attribute rows, e.g. "Oda Sayısı" → "3+1".
// Labels are lower-cased with Turkish rules.
func Labeled(ctx context.Context, r PageReader, rowSelector, labelSelector, valueSelector string) map[string]string {
	rows, err := r.All(ctx, rowSelector)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		label := FirstText(ctx, row, labelSelector)
		value := FirstText(ctx, row, valueSelector)
		if label == "" || value == "" {
			continue
		}
		out[normalize.Lower(strings.TrimSuffix(label, ":"))] = value
	}
	return out
}

// Pick returns the first value whose label contains any of the keys.
func Pick(attrs map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := attrs[key]; ok {
			return v
		}
	}
	labels := make([]string, 0, len(attrs))
	for label := range attrs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, key := range keys {
		for _, label := range labels {
			if strings.Contains(label, key) {
				return attrs[label]
			}
		}
	}
	return ""
}

// ContainsAny reports whether the page body mentions any of the phrases,
// compared with Turkish lower-casing.
func ContainsAny(ctx context.Context, r PageReader, phrases ...string) bool {
	body, err := r.Text(ctx, "body")
	if err != nil {
		return false
	}
	body = normalize.Lower(body)
	for _, p := range phrases {
		if strings.Contains(body, normalize.Lower(p)) {
			return true
		}
	}
	return false
}
