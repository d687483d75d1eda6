package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nrahal/wgor/internal/build"
	"github.com/nrahal/wgor/internal/config"
	"github.com/nrahal/wgor/internal/crawl"
	"github.com/nrahal/wgor/internal/metadata"
	"github.com/spf13/cobra"
)

var (
	showVersion    bool
	cfgFile        string
	seedURLs       []string
	reclevel       int
	pageRequisites bool
	quota          int64
	relativeOnly   bool
	httpsOnly      bool
	followFTP      bool
	noParent       bool
	spanHost       bool
	useRobots      bool
	spider         bool
	deleteAfter    bool
	includes       []string
	excludes       []string
	acceptURL      string
	acceptSuffix   []string
	rejectSuffix   []string
	acceptDomain   []string
	rejectedLog    string
	locale         string
	outputDir      string
	userAgent      string
	timeout        time.Duration
	baseDelay      time.Duration
	jitter         time.Duration
	randomSeed     int64
	maxAttempt     int
)

// parseSeedURLs converts a string slice of URLs to []url.URL
func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	if len(urlStrings) == 0 {
		return nil, fmt.Errorf("seed URLs cannot be empty")
	}

	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wgor",
	Short: "A recursive, polite, single-process web mirroring tool.",
	Long: `wgor recursively retrieves a site starting from one or more seed URLs,
admitting or rejecting every discovered link through an ordered rule chain
(scheme, host, parent directory, include/exclude lists, URL pattern,
acceptable suffixes, host-spanning, robots.txt), and writes every rejection
to a tab-separated log for inspection.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(build.FullVersion())
			return
		}

		if len(seedURLs) == 0 {
			fmt.Fprintf(os.Stderr, "Error: --seed-url is required. Please provide at least one seed URL to start crawling.\n")
			cmd.Usage()
			os.Exit(1)
		}

		parsedURLs, err := parseSeedURLs(seedURLs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		cfg := InitConfig(parsedURLs)

		fmt.Printf("Configuration initialized successfully\n")
		var urls []string
		for _, u := range cfg.SeedURLs() {
			urls = append(urls, u.String())
		}
		fmt.Printf("Seed URLs: %s\n", strings.Join(urls, ", "))
		if cfg.IsInfiniteRecursion() {
			fmt.Printf("Reclevel: infinite\n")
		} else {
			fmt.Printf("Reclevel: %d\n", cfg.Reclevel())
		}
		fmt.Printf("Page Requisites: %t\n", cfg.PageRequisites())
		fmt.Printf("No Parent: %t\n", cfg.NoParent())
		fmt.Printf("Span Host: %t\n", cfg.SpanHost())
		fmt.Printf("Use Robots: %t\n", cfg.UseRobots())
		fmt.Printf("Spider: %t\n", cfg.Spider())
		fmt.Printf("Base Delay: %v\n", cfg.BaseDelay())
		fmt.Printf("Jitter: %v\n", cfg.Jitter())
		fmt.Printf("Timeout: %v\n", cfg.Timeout())
		fmt.Printf("User Agent: %s\n", cfg.UserAgent())
		fmt.Printf("Locale: %s\n", cfg.Locale())
		fmt.Printf("Output Directory: %s\n", cfg.OutputDir())
		if cfg.RejectedLog() != "" {
			fmt.Printf("Rejected Log: %s\n", cfg.RejectedLog())
		}

		metadataSink := metadata.NewRecorder(os.Stdout)
		crawler := crawl.NewCrawler(cfg, metadataSink)

		result := crawler.Retrieve(context.Background())
		fmt.Printf("Crawl finished: %s\n", result)

		if result != crawl.OK {
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&showVersion, "version", false, "print the build version and exit")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&reclevel, "reclevel", 0, "maximum recursion depth from a seed URL (0 keeps the default)")
	rootCmd.PersistentFlags().BoolVar(&pageRequisites, "page-requisites", false, "fetch inlined page requisites one level past reclevel")
	rootCmd.PersistentFlags().Int64Var(&quota, "quota", 0, "maximum total bytes to download (0 for unlimited)")
	rootCmd.PersistentFlags().BoolVar(&relativeOnly, "relative-only", false, "follow only relative links")
	rootCmd.PersistentFlags().BoolVar(&httpsOnly, "https-only", false, "reject any non-https URL")
	rootCmd.PersistentFlags().BoolVar(&followFTP, "follow-ftp", false, "allow ftp/ftps URLs to be admitted")
	rootCmd.PersistentFlags().BoolVar(&noParent, "no-parent", false, "never ascend above the seed URL's directory")
	rootCmd.PersistentFlags().BoolVar(&spanHost, "span-host", false, "allow descending into hosts other than the seed's host")
	rootCmd.PersistentFlags().BoolVar(&useRobots, "use-robots", true, "consult robots.txt before fetching")
	rootCmd.PersistentFlags().BoolVar(&spider, "spider", false, "check links without downloading bodies")
	rootCmd.PersistentFlags().BoolVar(&deleteAfter, "delete-after", false, "delete downloaded files rejected post-download")
	rootCmd.PersistentFlags().StringArrayVar(&includes, "include", []string{}, "directory path prefixes required for admission (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&excludes, "exclude", []string{}, "directory path prefixes that cause rejection (can be repeated)")
	rootCmd.PersistentFlags().StringVar(&acceptURL, "accept-url", "", "regex a URL must match to be admitted")
	rootCmd.PersistentFlags().StringArrayVar(&acceptSuffix, "accept-suffix", []string{}, "file suffixes admitted (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&rejectSuffix, "reject-suffix", []string{}, "file suffixes rejected outright (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&acceptDomain, "accept-domain", []string{}, "extra hostnames allowed even without --span-host")
	rootCmd.PersistentFlags().StringVar(&rejectedLog, "rejected-log", "", "path to the tab-separated rejection log")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "", "locale used to format rejection-log timestamps")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "output", "root output directory for mirrored content")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests and robots.txt matching")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for a single fetch request")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "base delay between requests to the same host")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for the jitter random number generator (0 for current time)")
	rootCmd.PersistentFlags().IntVar(&maxAttempt, "max-attempt", 0, "maximum fetch attempts before giving up on a URL")
}

// InitConfig reads in config file and ENV variables if set.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
func InitConfig(seedUrls []url.URL) config.Config {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError reads in config file and ENV variables if set, returning any errors.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
// This makes it easier to test error cases.
func InitConfigWithError(seedUrls []url.URL) (config.Config, error) {
	if len(seedUrls) == 0 {
		return config.Config{}, fmt.Errorf("%w: seedUrls cannot be empty", config.ErrInvalidConfig)
	}

	if cfgFile != "" {
		fmt.Printf("Initializing config from file: %s\n", cfgFile)
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	fmt.Println("No config file specified. Using default flag values or environment variables")

	configBuilder := config.WithDefault(seedUrls)

	if reclevel != 0 {
		configBuilder = configBuilder.WithReclevel(reclevel)
	}
	if pageRequisites {
		configBuilder = configBuilder.WithPageRequisites(pageRequisites)
	}
	if quota > 0 {
		configBuilder = configBuilder.WithQuota(quota)
	}
	if relativeOnly {
		configBuilder = configBuilder.WithRelativeOnly(relativeOnly)
	}
	if httpsOnly {
		configBuilder = configBuilder.WithHTTPSOnly(httpsOnly)
	}
	if followFTP {
		configBuilder = configBuilder.WithFollowFTP(followFTP)
	}
	if noParent {
		configBuilder = configBuilder.WithNoParent(noParent)
	}
	if spanHost {
		configBuilder = configBuilder.WithSpanHost(spanHost)
	}
	configBuilder = configBuilder.WithUseRobots(useRobots)
	if spider {
		configBuilder = configBuilder.WithSpider(spider)
	}
	if deleteAfter {
		configBuilder = configBuilder.WithDeleteAfter(deleteAfter)
	}
	if len(includes) > 0 {
		configBuilder = configBuilder.WithIncludes(includes)
	}
	if len(excludes) > 0 {
		configBuilder = configBuilder.WithExcludes(excludes)
	}
	if acceptURL != "" {
		var err error
		configBuilder, err = configBuilder.WithAcceptURLPattern(acceptURL)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: invalid --accept-url pattern: %s", config.ErrInvalidConfig, err.Error())
		}
	}
	if len(acceptSuffix) > 0 {
		configBuilder = configBuilder.WithAcceptSuffix(acceptSuffix)
	}
	if len(rejectSuffix) > 0 {
		configBuilder = configBuilder.WithRejectSuffix(rejectSuffix)
	}
	if len(acceptDomain) > 0 {
		configBuilder = configBuilder.WithAcceptDomain(acceptDomain)
	}
	if rejectedLog != "" {
		configBuilder = configBuilder.WithRejectedLog(rejectedLog)
	}
	if locale != "" {
		configBuilder = configBuilder.WithLocale(locale)
	}
	if outputDir != "" && outputDir != "output" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}
	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}
	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}
	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}
	if maxAttempt > 0 {
		configBuilder = configBuilder.WithMaxAttempt(maxAttempt)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	showVersion = false
	cfgFile = ""
	seedURLs = []string{}
	reclevel = 0
	pageRequisites = false
	quota = 0
	relativeOnly = false
	httpsOnly = false
	followFTP = false
	noParent = false
	spanHost = false
	useRobots = true
	spider = false
	deleteAfter = false
	includes = []string{}
	excludes = []string{}
	acceptURL = ""
	acceptSuffix = []string{}
	rejectSuffix = []string{}
	acceptDomain = []string{}
	rejectedLog = ""
	locale = ""
	outputDir = ""
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	maxAttempt = 0
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string)    { cfgFile = path }
func SetSeedURLsForTest(urls []string)    { seedURLs = urls }
func SetReclevelForTest(n int)            { reclevel = n }
func SetPageRequisitesForTest(v bool)     { pageRequisites = v }
func SetQuotaForTest(v int64)             { quota = v }
func SetRelativeOnlyForTest(v bool)       { relativeOnly = v }
func SetHTTPSOnlyForTest(v bool)          { httpsOnly = v }
func SetFollowFTPForTest(v bool)          { followFTP = v }
func SetNoParentForTest(v bool)           { noParent = v }
func SetSpanHostForTest(v bool)           { spanHost = v }
func SetUseRobotsForTest(v bool)          { useRobots = v }
func SetSpiderForTest(v bool)             { spider = v }
func SetDeleteAfterForTest(v bool)        { deleteAfter = v }
func SetIncludesForTest(v []string)       { includes = v }
func SetExcludesForTest(v []string)       { excludes = v }
func SetAcceptURLForTest(v string)        { acceptURL = v }
func SetAcceptSuffixForTest(v []string)   { acceptSuffix = v }
func SetRejectSuffixForTest(v []string)   { rejectSuffix = v }
func SetAcceptDomainForTest(v []string)   { acceptDomain = v }
func SetRejectedLogForTest(v string)      { rejectedLog = v }
func SetLocaleForTest(v string)           { locale = v }
func SetOutputDirForTest(dir string)      { outputDir = dir }
func SetUserAgentForTest(agent string)    { userAgent = agent }
func SetTimeoutForTest(t time.Duration)   { timeout = t }
func SetBaseDelayForTest(delay time.Duration) { baseDelay = delay }
func SetJitterForTest(j time.Duration)    { jitter = j }
func SetRandomSeedForTest(seed int64)     { randomSeed = seed }
func SetMaxAttemptForTest(n int)          { maxAttempt = n }
