package cmd_test

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cmd "github.com/nrahal/wgor/internal/cli"
	"github.com/nrahal/wgor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestURLs() []url.URL {
	return []url.URL{
		{Scheme: "https", Host: "example.com"},
	}
}

func defaultBuiltConfig(t *testing.T) config.Config {
	t.Helper()
	baseURL := []url.URL{{Scheme: "https", Host: "base.org"}}
	cfg, err := config.WithDefault(baseURL).Build()
	require.NoError(t, err)
	return cfg
}

func TestInitConfigNoFlags(t *testing.T) {
	cmd.ResetFlags()

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	defaultCfg := defaultBuiltConfig(t)
	assert.Equal(t, defaultCfg.Reclevel(), cfg.Reclevel())
	assert.Equal(t, defaultCfg.OutputDir(), cfg.OutputDir())
	assert.Equal(t, defaultCfg.UseRobots(), cfg.UseRobots())
	assert.Len(t, cfg.SeedURLs(), 1)
}

func TestInitConfigWithEmptySeedUrls(t *testing.T) {
	cmd.ResetFlags()

	_, err := cmd.InitConfigWithError([]url.URL{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInitConfigWithReclevel(t *testing.T) {
	tests := []struct {
		name     string
		reclevel int
	}{
		{"Zero reclevel keeps default", 0},
		{"Positive reclevel", 10},
		{"Infinite recursion sentinel", config.InfiniteRecursion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd.ResetFlags()
			cmd.SetReclevelForTest(tt.reclevel)

			cfg, err := cmd.InitConfigWithError(defaultTestURLs())
			require.NoError(t, err)

			expected := tt.reclevel
			if tt.reclevel == 0 {
				expected = defaultBuiltConfig(t).Reclevel()
			}
			assert.Equal(t, expected, cfg.Reclevel())
		})
	}
}

func TestInitConfigWithPageRequisites(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetPageRequisitesForTest(true)

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)
	assert.True(t, cfg.PageRequisites())
}

func TestInitConfigWithOutputDir(t *testing.T) {
	tests := []struct {
		name         string
		outputDir    string
		shouldChange bool
	}{
		{"Empty outputDir", "", false},
		{"Default outputDir", "output", false},
		{"Custom outputDir", "custom-output", true},
		{"Absolute path outputDir", "/tmp/output", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd.ResetFlags()
			cmd.SetOutputDirForTest(tt.outputDir)

			cfg, err := cmd.InitConfigWithError(defaultTestURLs())
			require.NoError(t, err)

			expected := defaultBuiltConfig(t).OutputDir()
			if tt.shouldChange {
				expected = tt.outputDir
			}
			assert.Equal(t, expected, cfg.OutputDir())
		})
	}
}

func TestInitConfigWithAdmissionToggles(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetRelativeOnlyForTest(true)
	cmd.SetHTTPSOnlyForTest(true)
	cmd.SetFollowFTPForTest(true)
	cmd.SetNoParentForTest(true)
	cmd.SetSpanHostForTest(true)
	cmd.SetUseRobotsForTest(false)
	cmd.SetSpiderForTest(true)
	cmd.SetDeleteAfterForTest(true)

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	assert.True(t, cfg.RelativeOnly())
	assert.True(t, cfg.HTTPSOnly())
	assert.True(t, cfg.FollowFTP())
	assert.True(t, cfg.NoParent())
	assert.True(t, cfg.SpanHost())
	assert.False(t, cfg.UseRobots())
	assert.True(t, cfg.Spider())
	assert.True(t, cfg.DeleteAfter())
}

func TestInitConfigWithIncludesExcludes(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetIncludesForTest([]string{"/docs"})
	cmd.SetExcludesForTest([]string{"/docs/internal"})

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	assert.Equal(t, []string{"/docs"}, cfg.Includes())
	assert.Equal(t, []string{"/docs/internal"}, cfg.Excludes())
}

func TestInitConfigWithAcceptURL(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetAcceptURLForTest(`\.html$`)

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)
	require.NotNil(t, cfg.AcceptURL())
	assert.True(t, cfg.AcceptURL().MatchString("page.html"))
}

func TestInitConfigWithAcceptURL_Invalid(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetAcceptURLForTest(`(`)

	_, err := cmd.InitConfigWithError(defaultTestURLs())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInitConfigWithSuffixAndDomainFlags(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetAcceptSuffixForTest([]string{".html"})
	cmd.SetRejectSuffixForTest([]string{".exe"})
	cmd.SetAcceptDomainForTest([]string{"cdn.example.com"})

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	assert.Equal(t, []string{".html"}, cfg.AcceptSuffix())
	assert.Equal(t, []string{".exe"}, cfg.RejectSuffix())
	assert.Equal(t, []string{"cdn.example.com"}, cfg.AcceptDomain())
}

func TestInitConfigWithRejectedLogAndLocale(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetRejectedLogForTest("rejected.log")
	cmd.SetLocaleForTest("fr_FR")

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	assert.Equal(t, "rejected.log", cfg.RejectedLog())
	assert.Equal(t, "fr_FR", cfg.Locale())
}

func TestInitConfigWithSeedURLs(t *testing.T) {
	tests := []struct {
		name        string
		seedURLs    []string
		expectedLen int
	}{
		{"Single valid URL", []string{"https://example.com"}, 1},
		{"Multiple valid URLs", []string{"https://example.com", "https://docs.example.com"}, 2},
		{"Mixed protocols", []string{"https://example.com", "http://localhost:8080"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd.ResetFlags()

			var parsedURLs []url.URL
			for _, urlStr := range tt.seedURLs {
				parsedURL, _ := url.Parse(urlStr)
				parsedURLs = append(parsedURLs, *parsedURL)
			}

			cfg, err := cmd.InitConfigWithError(parsedURLs)
			require.NoError(t, err)
			assert.Len(t, cfg.SeedURLs(), tt.expectedLen)
		})
	}
}

func TestInitConfigWithPartialConfigFile(t *testing.T) {
	cmd.ResetFlags()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")

	configContent := `{
		"seedUrls": [{"Scheme": "https", "Host": "test-docs.com", "Path": "/docs"}],
		"reclevel": 10,
		"outputDir": "test-output",
		"spider": true,
		"userAgent": "test-agent",
		"randomSeed": 123456789
	}`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	cmd.SetConfigFileForTest(configFile)

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Reclevel())
	assert.Equal(t, "test-output", cfg.OutputDir())
	assert.True(t, cfg.Spider())
	assert.Equal(t, "test-agent", cfg.UserAgent())
	assert.Equal(t, int64(123456789), cfg.RandomSeed())
	require.Len(t, cfg.SeedURLs(), 1)
	assert.Equal(t, "https://test-docs.com/docs", cfg.SeedURLs()[0].String())

	defaultCfg := defaultBuiltConfig(t)
	assert.Equal(t, defaultCfg.BaseDelay(), cfg.BaseDelay())
	assert.Equal(t, defaultCfg.Jitter(), cfg.Jitter())
	assert.Equal(t, defaultCfg.Timeout(), cfg.Timeout())
}

func TestInitConfigWithPartialConfigFileNoSeedUrls(t *testing.T) {
	cmd.ResetFlags()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")

	configContent := `{
		"reclevel": 10,
		"outputDir": "test-output",
		"userAgent": "test-agent"
	}`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	cmd.SetConfigFileForTest(configFile)

	_, err := cmd.InitConfigWithError(defaultTestURLs())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInitConfigWithNonExistentFile(t *testing.T) {
	cmd.ResetFlags()
	cmd.SetConfigFileForTest("/path/that/does/not/exist/config.json")

	_, err := cmd.InitConfigWithError(defaultTestURLs())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "config file does not exist"))
}

func TestInitConfigWithInvalidConfigFile(t *testing.T) {
	cmd.ResetFlags()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{invalid json content}`), 0644))

	cmd.SetConfigFileForTest(configFile)

	_, err := cmd.InitConfigWithError(defaultTestURLs())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse config file"))
}

func TestResetFlags(t *testing.T) {
	cmd.SetConfigFileForTest("test.json")
	cmd.SetSeedURLsForTest([]string{"https://example.com"})
	cmd.SetReclevelForTest(10)
	cmd.SetOutputDirForTest("custom")
	cmd.SetSpiderForTest(true)

	cmd.ResetFlags()

	cfg, err := cmd.InitConfigWithError(defaultTestURLs())
	require.NoError(t, err)

	defaultCfg := defaultBuiltConfig(t)
	assert.Equal(t, defaultCfg.Reclevel(), cfg.Reclevel())
	assert.Equal(t, defaultCfg.OutputDir(), cfg.OutputDir())
	assert.False(t, cfg.Spider())
}

func TestInitConfigCompleteIntegration(t *testing.T) {
	cmd.ResetFlags()

	seedURLs := []url.URL{
		{Scheme: "https", Host: "docs.example.com"},
		{Scheme: "https", Host: "api.example.com", Path: "/v1"},
	}
	cmd.SetReclevelForTest(12)
	cmd.SetOutputDirForTest("/tmp/wgor-crawl")
	cmd.SetNoParentForTest(true)
	cmd.SetUserAgentForTest("custom-crawler/2.0")
	cmd.SetTimeoutForTest(time.Second * 45)
	cmd.SetBaseDelayForTest(time.Second * 3)
	cmd.SetJitterForTest(time.Millisecond * 750)
	cmd.SetRandomSeedForTest(987654321)
	cmd.SetMaxAttemptForTest(8)

	cfg, err := cmd.InitConfigWithError(seedURLs)
	require.NoError(t, err)

	assert.Len(t, cfg.SeedURLs(), len(seedURLs))
	assert.Equal(t, 12, cfg.Reclevel())
	assert.Equal(t, "/tmp/wgor-crawl", cfg.OutputDir())
	assert.True(t, cfg.NoParent())
	assert.Equal(t, "custom-crawler/2.0", cfg.UserAgent())
	assert.Equal(t, time.Second*45, cfg.Timeout())
	assert.Equal(t, time.Second*3, cfg.BaseDelay())
	assert.Equal(t, time.Millisecond*750, cfg.Jitter())
	assert.Equal(t, int64(987654321), cfg.RandomSeed())
	assert.Equal(t, 8, cfg.MaxAttempt())
}
