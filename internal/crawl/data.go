package crawl

// Result says how a crawl ended: normally, over its byte quota, or on a
// fatal write error.
type Result int

const (
	OK Result = iota
	QuotaExceeded
	FatalWriteError
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case QuotaExceeded:
		return "QUOTEXC"
	case FatalWriteError:
		return "FWRITEERR"
	default:
		return "UNKNOWN"
	}
}

// maxRedirectHops bounds the crawl loop's own redirect-following: each
// hop re-runs admission via the redirect arbiter before the next fetch,
// so a misconfigured redirect chain cannot spin the loop forever.
const maxRedirectHops = 10
