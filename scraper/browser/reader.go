// Package browser manages isolated chromedp sessions and exposes loaded pages
// through the PageReader capability interface.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

var (
	// ErrStructureChanged signals that an expected landmark never appeared;
	// the portal markup most likely changed. It is never retried.
	ErrStructureChanged = errors.New("portal structure changed")
	// ErrNotFound is returned by PageReader when a selector matches nothing.
	ErrNotFound = errors.New("element not found")
)

// PageReader reads text and attributes from a loaded page or a page element.
// An empty selector addresses the element itself.
type PageReader interface {
	Text(ctx context.Context, selector string) (string, error)
	Attr(ctx context.Context, selector, name string) (string, error)
	All(ctx context.Context, selector string) ([]PageReader, error)
}

// Page is a navigable browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Reader() PageReader
}

// Session is a Page that must be closed on every exit path.
type Session interface {
	Page
	Close()
}

// evalTimeout bounds a single DOM read.
const evalTimeout = 5 * time.Second

type evalResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

// domReader evaluates querySelector calls inside the tab. scope is a JS
// expression yielding the root element (or document).
type domReader struct {
	s     *chromeSession
	scope string
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (r *domReader) eval(ctx context.Context, js string, out any) error {
	return r.s.run(ctx, evalTimeout, chromedp.Evaluate(js, out))
}

func (r *domReader) Text(ctx context.Context, selector string) (string, error) {
	js := fmt.Sprintf(`(function() {
		var root = %s;
		if (!root) return {found: false, value: ''};
		var el = %s === '' ? root : root.querySelector(%s);
		if (!el) return {found: false, value: ''};
		return {found: true, value: (el.innerText || el.textContent || '').trim()};
	})()`, r.scope, quote(selector), quote(selector))

	var res evalResult
	if err := r.eval(ctx, js, &res); err != nil {
		return "", fmt.Errorf("text %q: %w", selector, err)
	}
	if !res.Found {
		return "", fmt.Errorf("text %q: %w", selector, ErrNotFound)
	}
	return res.Value, nil
}

func (r *domReader) Attr(ctx context.Context, selector, name string) (string, error) {
	js := fmt.Sprintf(`(function() {
		var root = %s;
		if (!root) return {found: false, value: ''};
		var el = %s === '' ? root : root.querySelector(%s);
		if (!el || !el.hasAttribute || !el.hasAttribute(%s)) return {found: false, value: ''};
		var v = el.getAttribute(%s);
		if (%s === 'href' || %s === 'src') {
			try { v = new URL(v, document.baseURI).href; } catch (e) {}
		}
		return {found: true, value: v || ''};
	})()`, r.scope, quote(selector), quote(selector), quote(name), quote(name), quote(name), quote(name))

	var res evalResult
	if err := r.eval(ctx, js, &res); err != nil {
		return "", fmt.Errorf("attr %q[%s]: %w", selector, name, err)
	}
	if !res.Found {
		return "", fmt.Errorf("attr %q[%s]: %w", selector, name, ErrNotFound)
	}
	return res.Value, nil
}

func (r *domReader) All(ctx context.Context, selector string) ([]PageReader, error) {
	js := fmt.Sprintf(`(function() {
		var root = %s;
		return root ? root.querySelectorAll(%s).length : 0;
	})()`, r.scope, quote(selector))

	var n int
	if err := r.eval(ctx, js, &n); err != nil {
		return nil, fmt.Errorf("all %q: %w", selector, err)
	}
	out := make([]PageReader, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domReader{
			s:     r.s,
			scope: fmt.Sprintf("((%s) || document.createDocumentFragment()).querySelectorAll(%s)[%d]", r.scope, quote(selector), i),
		})
	}
	return out, nil
}
