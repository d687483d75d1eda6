// Package linkextract turns downloaded HTML and CSS into the
// frontier.ChildRecord lists the crawl loop walks through admission:
// anchors, stylesheets, images, scripts, iframes, form actions, and
// meta-refresh/meta-robots directives.
package linkextract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nrahal/wgor/internal/frontier"
	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/internal/xurl"
	"golang.org/x/net/html"
)

// HTML extracts child link records from a downloaded HTML document.
type HTML struct {
	metadataSink metadata.MetadataSink
}

// NewHTML builds an HTML extractor.
func NewHTML(metadataSink metadata.MetadataSink) *HTML {
	return &HTML{metadataSink: metadataSink}
}

type linkSpec struct {
	selector   string
	attr       string
	inline     bool
	expectHTML bool
	expectCSS  bool
}

// childLinkSpecs enumerates every tag/attribute pair this extractor
// treats as a discoverable child link, with each link kind's
// inline/expect-HTML/expect-CSS flags.
var childLinkSpecs = []linkSpec{
	{selector: "a[href]", attr: "href", inline: false, expectHTML: true},
	{selector: "area[href]", attr: "href", inline: false, expectHTML: true},
	{selector: "link[rel=stylesheet][href]", attr: "href", inline: true, expectCSS: true},
	{selector: "img[src]", attr: "src", inline: true},
	{selector: "script[src]", attr: "src", inline: true},
	{selector: "iframe[src]", attr: "src", inline: true, expectHTML: true},
	{selector: "source[src]", attr: "src", inline: true},
	{selector: "form[action]", attr: "action", inline: false, expectHTML: true},
}

// Extract parses htmlBytes (downloaded from sourceURL) and returns
// every discovered child link plus whether a meta-robots "nofollow"
// directive was present; the crawl loop discards all children of a
// nofollow page when robots usage is enabled.
func (e *HTML) Extract(sourceURL xurl.URL, htmlBytes []byte) ([]frontier.ChildRecord, bool, *ExtractionError) {
	children, metaNofollow, err := e.extract(sourceURL, htmlBytes)
	if err != nil {
		e.metadataSink.RecordError(
			time.Now(),
			"linkextract",
			"HTML.Extract",
			mapExtractionErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, sourceURL.String())},
		)
		return nil, false, err
	}
	return children, metaNofollow, nil
}

func (e *HTML) extract(sourceURL xurl.URL, htmlBytes []byte) ([]frontier.ChildRecord, bool, *ExtractionError) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, false, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	base, baseErr := url.Parse(sourceURL.String())
	if baseErr != nil {
		return nil, false, &ExtractionError{
			Message:   fmt.Sprintf("invalid source URL: %v", baseErr),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	gq := goquery.NewDocumentFromNode(doc)

	metaNofollow := detectMetaNofollow(gq)

	var children []frontier.ChildRecord
	seen := make(map[string]struct{})

	for _, spec := range childLinkSpecs {
		spec := spec
		gq.Find(spec.selector).Each(func(_ int, s *goquery.Selection) {
			raw, exists := s.Attr(spec.attr)
			if !exists {
				return
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				return
			}

			ignore := false
			if spec.selector == "a[href]" {
				if rel, ok := s.Attr("rel"); ok && strings.Contains(strings.ToLower(rel), "nofollow") {
					ignore = true
				}
			}

			if strings.HasPrefix(raw, "#") {
				ignore = true
			}

			child, ok := resolveChild(base, raw, spec, ignore)
			if !ok {
				return
			}
			key := child.URL.String()
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			children = append(children, child)
		})
	}

	// meta refresh: <meta http-equiv="refresh" content="0; url=/next">
	gq.Find(`meta[http-equiv="refresh" i]`).Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		target := parseRefreshTarget(content)
		if target == "" {
			return
		}
		child, ok := resolveChild(base, target, linkSpec{inline: false, expectHTML: true}, false)
		if !ok {
			return
		}
		key := child.URL.String()
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			children = append(children, child)
		}
	})

	return children, metaNofollow, nil
}

// resolveChild resolves raw (possibly relative) against base and
// builds its ChildRecord, skipping links whose scheme is not
// web-navigable at all (javascript:, mailto:, tel:, data:) since no
// admission rule needs to see those explicitly rejected.
func resolveChild(base *url.URL, raw string, spec linkSpec, ignore bool) (frontier.ChildRecord, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return frontier.ChildRecord{}, false
	}

	resolved := base.ResolveReference(ref)
	switch strings.ToLower(resolved.Scheme) {
	case "http", "https", "ftp", "ftps":
	default:
		return frontier.ChildRecord{}, false
	}

	relative := !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//")

	return frontier.ChildRecord{
		URL:                   xurl.FromNetURL(resolved),
		LinkRelative:          relative,
		LinkInline:            spec.inline,
		LinkExpectHTML:        spec.expectHTML,
		LinkExpectCSS:         spec.expectCSS,
		IgnoreWhenDownloading: ignore,
	}, true
}

func detectMetaNofollow(gq *goquery.Document) bool {
	found := false
	gq.Find(`meta[name="robots" i]`).Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if strings.Contains(strings.ToLower(content), "nofollow") {
			found = true
		}
	})
	return found
}

// parseRefreshTarget extracts the url=... portion of a meta-refresh
// content attribute, e.g. "5; url=https://example.com/next".
func parseRefreshTarget(content string) string {
	idx := strings.IndexAny(content, ";,")
	rest := content
	if idx >= 0 {
		rest = content[idx+1:]
	}
	rest = strings.TrimSpace(rest)
	lower := strings.ToLower(rest)
	if !strings.HasPrefix(lower, "url=") {
		return ""
	}
	target := rest[len("url="):]
	target = strings.Trim(target, `"'`)
	return strings.TrimSpace(target)
}
