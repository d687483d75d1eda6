package urlutil

import "net/url"

// defaultPorts maps a scheme to the port its URLs may omit.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
	"ftps":  "990",
}

// Canonicalize maps equivalent spellings of a URL to one canonical form:
// scheme and host lowercased, the scheme's default port dropped, trailing
// path slashes stripped (except root "/"), and query and fragment removed.
//
// Pure and idempotent; does not consult crawl state.
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if port := canonical.Port(); port != "" && port == defaultPorts[canonical.Scheme] {
		canonical.Host = canonical.Hostname()
	}

	for len(canonical.Path) > 1 && canonical.Path[len(canonical.Path)-1] == '/' {
		canonical.Path = canonical.Path[:len(canonical.Path)-1]
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// lowerASCII lowercases ASCII letters without allocating when the input
// is already lowercase.
func lowerASCII(s string) string {
	lower := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			lower = false
			break
		}
	}
	if lower {
		return s
	}
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
