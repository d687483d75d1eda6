package frontier

import "github.com/nrahal/wgor/internal/xurl"

// WorkItem is one queue element: a parsed URL, its referer, its BFS
// depth, and the hints describing whether its body should be treated as
// HTML or CSS for link extraction once downloaded.
type WorkItem struct {
	URL         xurl.URL
	Referer     string
	Depth       int
	HTMLAllowed bool
	CSSAllowed  bool
}

// NewSeedItem builds the depth-0 work item a crawl starts from: HTML
// extraction allowed, CSS not expected.
func NewSeedItem(start xurl.URL) WorkItem {
	return WorkItem{
		URL:         start,
		Depth:       0,
		HTMLAllowed: true,
		CSSAllowed:  false,
	}
}

// ChildRecord is produced by the link extractor: a parsed URL plus the
// flags describing how the link appeared in its parent document.
type ChildRecord struct {
	URL                   xurl.URL
	LinkRelative          bool
	LinkInline            bool
	LinkExpectHTML        bool
	LinkExpectCSS         bool
	IgnoreWhenDownloading bool
}
