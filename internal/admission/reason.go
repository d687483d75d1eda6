// Package admission implements the ordered, short-circuiting rule chain
// that decides whether a discovered child URL is followed: a single
// choke point every discovered URL passes through before it is allowed
// to reach the frontier.
package admission

// RejectReason carries both the admission outcome and its rejection-log
// token. Success is the zero value so a freshly-declared RejectReason
// defaults to "not yet rejected" rather than an arbitrary rule.
type RejectReason int

const (
	Success RejectReason = iota
	Blacklist
	NotHTTPS
	NonHTTP
	Absolute
	Domain
	Parent
	List
	Regex
	Rules
	SpannedHost
	Robots
)

// String returns the uppercase token the rejection log writes into the
// REASON column.
func (r RejectReason) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Blacklist:
		return "BLACKLIST"
	case NotHTTPS:
		return "NOTHTTPS"
	case NonHTTP:
		return "NONHTTP"
	case Absolute:
		return "ABSOLUTE"
	case Domain:
		return "DOMAIN"
	case Parent:
		return "PARENT"
	case List:
		return "LIST"
	case Regex:
		return "REGEX"
	case Rules:
		return "RULES"
	case SpannedHost:
		return "SPANNEDHOST"
	case Robots:
		return "ROBOTS"
	default:
		return "UNKNOWN"
	}
}
