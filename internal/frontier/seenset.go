package frontier

import "github.com/nrahal/wgor/internal/xurl"

// SeenSet is the crawl's de-duplication set. Keys are percent-decoded
// before insertion and lookup so two encodings of the same URL collapse
// to a single entry; SeenSet applies xurl.Decode itself rather than
// trusting callers to pre-decode.

// SeenSet is a set of URL strings keyed by their percent-decoded form.
type SeenSet struct {
	entries map[string]struct{}
}

// NewSeenSet returns an empty seen-set.
func NewSeenSet() *SeenSet {
	return &SeenSet{entries: make(map[string]struct{})}
}

// Add registers a URL string as seen.
func (s *SeenSet) Add(rawURL string) {
	s.entries[xurl.Decode(rawURL)] = struct{}{}
}

// Contains reports whether rawURL (in any percent-encoding) was already added.
func (s *SeenSet) Contains(rawURL string) bool {
	_, ok := s.entries[xurl.Decode(rawURL)]
	return ok
}

// Size returns the number of distinct decoded URL strings seen.
func (s *SeenSet) Size() int {
	return len(s.entries)
}

// Release drops the underlying storage once the crawl is done with it.
func (s *SeenSet) Release() {
	s.entries = nil
}
