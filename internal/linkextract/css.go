package linkextract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nrahal/wgor/internal/frontier"
	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/internal/xurl"
)

// urlFuncPattern matches CSS url(...) references, with or without quotes.
// Go's RE2 engine has no backreferences, so each quote style gets its own
// alternative instead of a `\1` matching the opening quote.
var urlFuncPattern = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^'")\s]+))\s*\)`)

// importPattern matches @import "foo.css" and @import url(foo.css).
var importPattern = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?\s*\)?`)

// CSS extracts child link records (stylesheet imports, background/font
// url() references) from a downloaded CSS file via a regex scan, since
// CSS has no DOM to walk.
type CSS struct {
	metadataSink metadata.MetadataSink
}

// NewCSS builds a CSS extractor.
func NewCSS(metadataSink metadata.MetadataSink) *CSS {
	return &CSS{metadataSink: metadataSink}
}

// Extract scans cssBytes (downloaded from sourceURL) for url(...) and
// @import references, resolving each against sourceURL.
func (e *CSS) Extract(sourceURL xurl.URL, cssBytes []byte) ([]frontier.ChildRecord, *ExtractionError) {
	children, err := e.extract(sourceURL, cssBytes)
	if err != nil {
		e.metadataSink.RecordError(
			time.Now(),
			"linkextract",
			"CSS.Extract",
			mapExtractionErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, sourceURL.String())},
		)
		return nil, err
	}
	return children, nil
}

func (e *CSS) extract(sourceURL xurl.URL, cssBytes []byte) ([]frontier.ChildRecord, *ExtractionError) {
	if len(cssBytes) == 0 {
		return nil, &ExtractionError{
			Message:   "empty CSS body",
			Retryable: false,
			Cause:     ErrCauseNoContent,
		}
	}

	base, err := url.Parse(sourceURL.String())
	if err != nil {
		return nil, &ExtractionError{
			Message:   fmt.Sprintf("invalid source URL: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	text := string(cssBytes)
	seen := make(map[string]struct{})
	var children []frontier.ChildRecord

	collect := func(raw string, inline bool, expectCSS bool) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") {
			return
		}
		spec := linkSpec{inline: inline, expectCSS: expectCSS}
		child, ok := resolveChild(base, raw, spec, false)
		if !ok {
			return
		}
		key := child.URL.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		children = append(children, child)
	}

	for _, m := range urlFuncPattern.FindAllStringSubmatch(text, -1) {
		switch {
		case m[1] != "":
			collect(m[1], true, false)
		case m[2] != "":
			collect(m[2], true, false)
		default:
			collect(m[3], true, false)
		}
	}
	for _, m := range importPattern.FindAllStringSubmatch(text, -1) {
		collect(m[1], true, true)
	}

	return children, nil
}
