package robots

import (
	"strconv"
	"strings"
	"time"

	"github.com/nrahal/wgor/pkg/timeutil"
)

// RobotsFile is the parsed shape of one robots.txt: the raw groups as
// they appeared in the file, before any user-agent resolution. Decision
// making happens on hostSpec, not on this type.
type RobotsFile struct {
	Host     string
	Sitemaps []string
	Groups   []AgentGroup
}

// AgentGroup is one user-agent block: the agents it names and the rules
// that follow them up to the next block.
type AgentGroup struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay *time.Duration
}

// ParseRobotsTxt parses robots.txt content line by line. Unknown and
// malformed lines are skipped; rules appearing before any User-agent
// line are collected into an implicit wildcard group, which some sites
// rely on.
func ParseRobotsTxt(content, host string) RobotsFile {
	file := RobotsFile{Host: host}

	var current *AgentGroup
	var orphan AgentGroup

	flush := func() {
		if current != nil {
			file.Groups = append(file.Groups, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])

		switch directive {
		case "user-agent":
			// Consecutive User-agent lines share one group; a User-agent
			// line after rules starts a new group.
			if current != nil && groupHasRules(current) {
				flush()
			}
			if current == nil {
				current = &AgentGroup{}
			}
			current.Agents = append(current.Agents, value)

		case "allow":
			target := &orphan
			if current != nil {
				target = current
			}
			target.Allow = append(target.Allow, value)

		case "disallow":
			target := &orphan
			if current != nil {
				target = current
			}
			target.Disallow = append(target.Disallow, value)

		case "crawl-delay":
			if current == nil {
				continue
			}
			if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
				current.CrawlDelay = timeutil.DurationPtr(time.Duration(secs * float64(time.Second)))
			}

		case "sitemap":
			if value != "" {
				file.Sitemaps = append(file.Sitemaps, value)
			}
		}
	}
	flush()

	if len(orphan.Allow) > 0 || len(orphan.Disallow) > 0 {
		orphan.Agents = []string{"*"}
		file.Groups = append([]AgentGroup{orphan}, file.Groups...)
	}

	return file
}

func groupHasRules(g *AgentGroup) bool {
	return len(g.Allow) > 0 || len(g.Disallow) > 0 || g.CrawlDelay != nil
}

// specForAgent resolves file down to the single hostSpec that applies
// to agent: the most specifically matching group's rules, with rule
// paths normalized to leading-slash form and empty rules dropped
// (an empty Disallow line means "allow everything" per the de facto
// grammar, not "disallow the empty prefix").
func specForAgent(file RobotsFile, agent string, fetchedAt time.Time) hostSpec {
	spec := hostSpec{
		host:      file.Host,
		agent:     agent,
		fetchedAt: fetchedAt,
		hasGroups: len(file.Groups) > 0,
	}

	group := bestGroup(file.Groups, agent)
	if group == nil {
		return spec
	}
	spec.agentMatched = true

	for _, p := range group.Allow {
		if p != "" {
			spec.allow = append(spec.allow, normalizeRulePath(p))
		}
	}
	for _, p := range group.Disallow {
		if p != "" {
			spec.disallow = append(spec.disallow, normalizeRulePath(p))
		}
	}
	if group.CrawlDelay != nil {
		d := *group.CrawlDelay
		spec.crawlDelay = &d
	}
	return spec
}

// bestGroup picks the group whose agent token most specifically matches
// agent: an exact (case-insensitive) token wins outright, then the
// longest token that prefixes agent (so "wgor" beats "*" for
// "wgor/1.0"), then the first wildcard group.
func bestGroup(groups []AgentGroup, agent string) *AgentGroup {
	agentLower := strings.ToLower(agent)

	var best *AgentGroup
	bestLen := 0

	for i := range groups {
		g := &groups[i]
		for _, token := range g.Agents {
			tokenLower := strings.ToLower(token)

			if tokenLower == agentLower {
				return g
			}
			if token == "*" {
				if best == nil {
					best = g
				}
				continue
			}
			if strings.HasPrefix(agentLower, tokenLower) && len(tokenLower) > bestLen {
				best = g
				bestLen = len(tokenLower)
			}
		}
	}
	return best
}

func normalizeRulePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
