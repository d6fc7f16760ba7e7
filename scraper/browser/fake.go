package browser

import (
	"context"
	"fmt"
	"sync"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

// FakePage is an in-memory PageReader used to test extractors without Chrome.
// Keys are selectors.
type FakePage struct {
	Texts    map[string]string
	Attrs    map[string]map[string]string
	Children map[string][]*FakePage
	// Visible lists extra selectors WaitVisible accepts.
	Visible []string
}

// Elem builds a leaf element with its own text and attributes.
func Elem(text string, attrs map[string]string) *FakePage {
	return &FakePage{
		Texts: map[string]string{"": text},
		Attrs: map[string]map[string]string{"": attrs},
	}
}

func (f *FakePage) Text(_ context.Context, selector string) (string, error) {
	if v, ok := f.Texts[selector]; ok {
		return v, nil
	}
	return "", fmt.Errorf("text %q: %w", selector, ErrNotFound)
}

func (f *FakePage) Attr(_ context.Context, selector, name string) (string, error) {
	if v, ok := f.Attrs[selector][name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("attr %q[%s]: %w", selector, name, ErrNotFound)
}

func (f *FakePage) All(_ context.Context, selector string) ([]PageReader, error) {
	children := f.Children[selector]
	out := make([]PageReader, 0, len(children))
	for _, c := range children {
		out = append(out, c)
	}
	return out, nil
}

func (f *FakePage) has(selector string) bool {
	if _, ok := f.Texts[selector]; ok {
		return true
	}
	if _, ok := f.Attrs[selector]; ok {
		return true
	}
	if _, ok := f.Children[selector]; ok {
		return true
	}
	for _, v := range f.Visible {
		if v == selector {
			return true
		}
	}
	return false
}

// FakeBrowser is a Provider serving FakePages by URL.
type FakeBrowser struct {
	mu sync.Mutex

	Pages map[string]*FakePage
	// NavigateErrs are returned, in order, by successive navigations to a URL.
	NavigateErrs map[string][]error

	Acquired   int
	Released   int
	Navigated  []string
	AcquireErr error
}

func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{
		Pages:        make(map[string]*FakePage),
		NavigateErrs: make(map[string][]error),
	}
}

func (b *FakeBrowser) Acquire(_ context.Context, _ models.Portal) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.AcquireErr != nil {
		return nil, b.AcquireErr
	}
	b.Acquired++
	return &fakeSession{b: b}, nil
}

// Open reports the number of acquired sessions not yet closed.
func (b *FakeBrowser) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Acquired - b.Released
}

// Session returns a single Page over page, for extractor tests.
func (b *FakeBrowser) Session(page *FakePage) Session {
	return &fakeSession{b: b, current: page}
}

type fakeSession struct {
	b       *FakeBrowser
	current *FakePage
	once    sync.Once
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	s.b.Navigated = append(s.b.Navigated, url)
	if errs := s.b.NavigateErrs[url]; len(errs) > 0 {
		s.b.NavigateErrs[url] = errs[1:]
		return errs[0]
	}
	if page, ok := s.b.Pages[url]; ok {
		s.current = page
		return nil
	}
	if s.current != nil {
		return nil
	}
	return fmt.Errorf("navigate %s: %w: net::ERR_NAME_NOT_RESOLVED", url, utils.ErrNetwork)
}

func (s *fakeSession) WaitVisible(_ context.Context, selector string) error {
	if s.current == nil || !s.current.has(selector) {
		return fmt.Errorf("wait %q: %w", selector, ErrStructureChanged)
	}
	return nil
}

func (s *fakeSession) Reader() PageReader {
	if s.current == nil {
		return &FakePage{}
	}
	return s.current
}

func (s *fakeSession) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		s.b.Released++
		s.b.mu.Unlock()
	})
}
