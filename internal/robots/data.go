package robots

import "time"

// hostSpec is the per-(host, port) exclusion spec the crawl consults:
// the allow/disallow prefixes that apply to this crawler's user-agent,
// resolved once from the fetched robots.txt and then immutable.
type hostSpec struct {
	host       string
	agent      string
	allow      []string
	disallow   []string
	crawlDelay *time.Duration
	fetchedAt  time.Time

	// hasGroups is false when the robots.txt carried no user-agent
	// groups at all (404, empty file, or the installed dummy spec).
	hasGroups bool

	// agentMatched is false when no group (not even *) applied to us.
	agentMatched bool
}

type DecisionReason string

const (
	AllowedByRobots     DecisionReason = "allowed_by_robots"
	DisallowedByRobots  DecisionReason = "disallowed_by_robots"
	UserAgentNotMatched DecisionReason = "user_agent_not_matched"
	EmptyRuleSet        DecisionReason = "empty_rule_set"
)

// Decision is the outcome of matching one URL path against a host's spec.
type Decision struct {
	// Path is the URL path the decision was made for.
	Path string

	Allowed bool

	// Reason records why, for diagnostics only.
	Reason DecisionReason

	// CrawlDelay carries the group's Crawl-delay, if the spec had one,
	// so the caller can feed it to the politeness layer.
	CrawlDelay *time.Duration
}
