package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"
)

// InfiniteRecursion is the reclevel sentinel meaning "no depth bound".
const InfiniteRecursion = -1

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Initial pages to give to the crawler to begin discovering and traversing other pages.
	seedURLs []url.URL

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from a seed (root) URL. InfiniteRecursion disables the bound.
	reclevel int
	// Whether inlined page requisites (images, stylesheets) are fetched one
	// level past reclevel.
	pageRequisites bool
	// Maximum total bytes downloaded before the crawl aborts with QUOTEXC. 0 means unlimited.
	quota int64

	//===============
	// Admission rules
	//===============
	// Only follow relative (same-document-relative) links.
	relativeOnly bool
	// Reject any non-https URL outright.
	httpsOnly bool
	// Allow ftp/ftps URLs to be admitted.
	followFTP bool
	// Never ascend above the seed URL's directory.
	noParent bool
	// Allow descending into hosts other than the seed's host.
	spanHost bool
	// Consult robots.txt before fetching.
	useRobots bool
	// Spider mode: check links without downloading bodies.
	spider bool
	// Delete downloaded files that end up rejected post-download.
	deleteAfter bool

	// Directory path prefixes that must match for a URL to be admitted.
	includes []string
	// Directory path prefixes that cause rejection even if includes matches.
	excludes []string
	// URL must match this pattern to be admitted; nil means no constraint.
	acceptURL *regexp.Regexp
	// File suffixes that are admitted (e.g. "html", "css"); empty means all.
	acceptSuffix []string
	// File suffixes that are rejected outright.
	rejectSuffix []string
	// Additional hostnames allowed even when spanHost is false.
	acceptDomain []string

	//===============
	// Output / diagnostics
	//===============
	// Path to the tab-separated rejection log. Empty disables it.
	rejectedLog string
	// Locale tag used to format diagnostic timestamps in the rejection log.
	locale string
	// Root directory in which to store downloaded files.
	outputDir string

	//===============
	// Fetch / politeness (ambient; carried regardless of which admission
	// features are enabled)
	//===============
	// Maximum time of a single fetch request.
	timeout time.Duration
	// User agent used in the request header and in robots.txt matching.
	userAgent string
	// Minimum, fixed waiting time enforced between two requests to the same host.
	baseDelay time.Duration
	// Randomized variation added on top of the base delay.
	jitter time.Duration
	// Controls the random number generator used for jitter.
	randomSeed int64
	// Maximum attempts during retry.
	maxAttempt int
	// Initial delay for exponential backoff.
	backoffInitialDuration time.Duration
	// Multiplier applied on each backoff step.
	backoffMultiplier float64
	// Capped maximum delay for backoff.
	backoffMaxDuration time.Duration
}

type configDTO struct {
	SeedURLs               []url.URL     `json:"seedUrls"`
	// Reclevel is a pointer so an explicit "reclevel": 0 (fetch only the
	// seed URL) is distinguishable from an absent key, unlike the other
	// omitempty int fields here where 0 and "unset" coincide.
	Reclevel               *int          `json:"reclevel,omitempty"`
	PageRequisites         bool          `json:"pageRequisites,omitempty"`
	Quota                  int64         `json:"quota,omitempty"`
	RelativeOnly           bool          `json:"relativeOnly,omitempty"`
	HTTPSOnly              bool          `json:"httpsOnly,omitempty"`
	FollowFTP              bool          `json:"followFtp,omitempty"`
	NoParent               bool          `json:"noParent,omitempty"`
	SpanHost               bool          `json:"spanHost,omitempty"`
	UseRobots              bool          `json:"useRobots,omitempty"`
	Spider                 bool          `json:"spider,omitempty"`
	DeleteAfter            bool          `json:"deleteAfter,omitempty"`
	Includes               []string      `json:"includes,omitempty"`
	Excludes               []string      `json:"excludes,omitempty"`
	AcceptURLPattern       string        `json:"acceptUrlPattern,omitempty"`
	AcceptSuffix           []string      `json:"acceptSuffix,omitempty"`
	RejectSuffix           []string      `json:"rejectSuffix,omitempty"`
	AcceptDomain           []string      `json:"acceptDomain,omitempty"`
	RejectedLog            string        `json:"rejectedLog,omitempty"`
	Locale                 string        `json:"locale,omitempty"`
	OutputDir              string        `json:"outputDir,omitempty"`
	// Timeout, BaseDelay, and Jitter are pointers for the same reason as
	// Reclevel: an explicit 0 (no request timeout; no politeness delay; no
	// jitter) is a real, commonly-tested configuration, not "unset".
	Timeout                *time.Duration `json:"timeout,omitempty"`
	UserAgent              string         `json:"userAgent,omitempty"`
	BaseDelay              *time.Duration `json:"baseDelay,omitempty"`
	Jitter                 *time.Duration `json:"jitter,omitempty"`
	RandomSeed             int64         `json:"randomSeed,omitempty"`
	MaxAttempt             int           `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64       `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration `json:"backoffMaxDuration,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {

	// Start with default config
	cfg, err := WithDefault(dto.SeedURLs).Build()
	if err != nil {
		return Config{}, err
	}

	if dto.Reclevel != nil {
		cfg.reclevel = *dto.Reclevel
	}
	cfg.pageRequisites = dto.PageRequisites
	if dto.Quota != 0 {
		cfg.quota = dto.Quota
	}

	cfg.relativeOnly = dto.RelativeOnly
	cfg.httpsOnly = dto.HTTPSOnly
	cfg.followFTP = dto.FollowFTP
	cfg.noParent = dto.NoParent
	cfg.spanHost = dto.SpanHost
	cfg.useRobots = dto.UseRobots
	cfg.spider = dto.Spider
	cfg.deleteAfter = dto.DeleteAfter

	// Includes/excludes/suffixes/domains: always take the DTO value, even
	// empty, since an absent list is a meaningful "no restriction".
	cfg.includes = dto.Includes
	cfg.excludes = dto.Excludes
	cfg.acceptSuffix = dto.AcceptSuffix
	cfg.rejectSuffix = dto.RejectSuffix
	cfg.acceptDomain = dto.AcceptDomain

	if dto.AcceptURLPattern != "" {
		re, err := regexp.Compile(dto.AcceptURLPattern)
		if err != nil {
			return Config{}, fmt.Errorf("%w: invalid acceptUrlPattern: %s", ErrInvalidConfig, err.Error())
		}
		cfg.acceptURL = re
	}

	if dto.RejectedLog != "" {
		cfg.rejectedLog = dto.RejectedLog
	}
	if dto.Locale != "" {
		cfg.locale = dto.Locale
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}

	if dto.Timeout != nil {
		cfg.timeout = *dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.BaseDelay != nil {
		cfg.baseDelay = *dto.BaseDelay
	}
	if dto.Jitter != nil {
		cfg.jitter = *dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefault creates a new Config with the provided seed URLs and default values for all other fields.
// seedUrls is mandatory and must not be empty - an error will be returned if it is.
func WithDefault(seedUrls []url.URL) *Config {
	defaultConfig := Config{
		seedURLs:               seedUrls,
		reclevel:                5,
		pageRequisites:          false,
		quota:                   0,
		useRobots:               true,
		rejectedLog:             "",
		locale:                  "en_US",
		outputDir:               "output",
		timeout:                 time.Second * 10,
		userAgent:               "wgor/1.0",
		baseDelay:               time.Second,
		jitter:                  time.Millisecond * 500,
		randomSeed:              time.Now().UnixNano(),
		maxAttempt:              5,
		backoffInitialDuration:  100 * time.Millisecond,
		backoffMultiplier:       2.0,
		backoffMaxDuration:      10 * time.Second,
	}
	return &defaultConfig
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithReclevel(depth int) *Config {
	c.reclevel = depth
	return c
}

func (c *Config) WithPageRequisites(v bool) *Config {
	c.pageRequisites = v
	return c
}

func (c *Config) WithQuota(bytes int64) *Config {
	c.quota = bytes
	return c
}

func (c *Config) WithRelativeOnly(v bool) *Config {
	c.relativeOnly = v
	return c
}

func (c *Config) WithHTTPSOnly(v bool) *Config {
	c.httpsOnly = v
	return c
}

func (c *Config) WithFollowFTP(v bool) *Config {
	c.followFTP = v
	return c
}

func (c *Config) WithNoParent(v bool) *Config {
	c.noParent = v
	return c
}

func (c *Config) WithSpanHost(v bool) *Config {
	c.spanHost = v
	return c
}

func (c *Config) WithUseRobots(v bool) *Config {
	c.useRobots = v
	return c
}

func (c *Config) WithSpider(v bool) *Config {
	c.spider = v
	return c
}

func (c *Config) WithDeleteAfter(v bool) *Config {
	c.deleteAfter = v
	return c
}

func (c *Config) WithIncludes(prefixes []string) *Config {
	c.includes = prefixes
	return c
}

func (c *Config) WithExcludes(prefixes []string) *Config {
	c.excludes = prefixes
	return c
}

func (c *Config) WithAcceptURLPattern(pattern string) (*Config, error) {
	if pattern == "" {
		c.acceptURL = nil
		return c, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return c, err
	}
	c.acceptURL = re
	return c, nil
}

func (c *Config) WithAcceptSuffix(suffixes []string) *Config {
	c.acceptSuffix = suffixes
	return c
}

func (c *Config) WithRejectSuffix(suffixes []string) *Config {
	c.rejectSuffix = suffixes
	return c
}

func (c *Config) WithAcceptDomain(domains []string) *Config {
	c.acceptDomain = domains
	return c
}

func (c *Config) WithRejectedLog(path string) *Config {
	c.rejectedLog = path
	return c
}

func (c *Config) WithLocale(locale string) *Config {
	c.locale = locale
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) Build() (Config, error) {
	if len(c.seedURLs) == 0 {
		return Config{}, fmt.Errorf("%w: seedUrls cannot be empty", ErrInvalidConfig)
	}
	// reclevel=0 is a legitimate, meaningful value (fetch only the seed,
	// enqueue nothing), so it must not be coerced back to WithDefault's 5
	// here; WithDefault already seeds the default.
	if c.userAgent == "" {
		c.userAgent = "wgor/1.0"
	}
	// Unlike reclevel, 0 is never valid for maxAttempt (retry.Retry errors
	// on MaxAttempts < 1), so this guard stays.
	if c.maxAttempt == 0 {
		c.maxAttempt = 5
	}

	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) Reclevel() int {
	return c.reclevel
}

// IsInfiniteRecursion reports whether reclevel is unbounded.
func (c Config) IsInfiniteRecursion() bool {
	return c.reclevel == InfiniteRecursion
}

func (c Config) PageRequisites() bool {
	return c.pageRequisites
}

func (c Config) Quota() int64 {
	return c.quota
}

func (c Config) RelativeOnly() bool {
	return c.relativeOnly
}

func (c Config) HTTPSOnly() bool {
	return c.httpsOnly
}

func (c Config) FollowFTP() bool {
	return c.followFTP
}

func (c Config) NoParent() bool {
	return c.noParent
}

func (c Config) SpanHost() bool {
	return c.spanHost
}

func (c Config) UseRobots() bool {
	return c.useRobots
}

func (c Config) Spider() bool {
	return c.spider
}

func (c Config) DeleteAfter() bool {
	return c.deleteAfter
}

func (c Config) Includes() []string {
	return append([]string(nil), c.includes...)
}

func (c Config) Excludes() []string {
	return append([]string(nil), c.excludes...)
}

func (c Config) AcceptURL() *regexp.Regexp {
	return c.acceptURL
}

func (c Config) AcceptSuffix() []string {
	return append([]string(nil), c.acceptSuffix...)
}

func (c Config) RejectSuffix() []string {
	return append([]string(nil), c.rejectSuffix...)
}

func (c Config) AcceptDomain() []string {
	return append([]string(nil), c.acceptDomain...)
}

func (c Config) RejectedLog() string {
	return c.rejectedLog
}

func (c Config) Locale() string {
	return c.locale
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}
