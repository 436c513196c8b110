package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "data/reference_companies.csv", cfg.Reference.Path)
	assert.Equal(t, "browser", cfg.Scrape.Navigator)
	assert.Equal(t, 2*time.Minute, cfg.Scrape.CacheTTL())
	assert.Equal(t, "https://www.google.com/search", cfg.Scrape.SearchBaseURL)
	assert.Equal(t, "zoominfo", cfg.Scrape.ProfileQuery)
	assert.Equal(t, 4000, cfg.Scrape.SearchSettleMs)
	assert.Equal(t, 6000, cfg.Scrape.PageSettleMs)
	assert.Equal(t, 3, cfg.Scrape.BreakerThreshold)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "markdown", cfg.Jina.Format)
	assert.True(t, cfg.Form.AutoButtons)
	assert.Equal(t, 20, cfg.Dropdown.PanelAttempts)
	assert.Equal(t, 250, cfg.Dropdown.PanelIntervalMs)
	assert.Equal(t, 60, cfg.Dropdown.ResultAttempts)
	assert.Equal(t, 200, cfg.Dropdown.ResultIntervalMs)
	assert.Equal(t, 2000, cfg.Dropdown.SettleMs)
	assert.Equal(t, 3000, cfg.Pipeline.InterLeadDelayMs)
	assert.Equal(t, 5, cfg.Pipeline.InvalidStreakLimit)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
scrape:
  navigator: jina
  cache_ttl_secs: 30
form:
  campaign: "Q3 Outbound"
  selectors:
    email: "input#work_email"
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "jina", cfg.Scrape.Navigator)
	assert.Equal(t, 30*time.Second, cfg.Scrape.CacheTTL())
	assert.Equal(t, "Q3 Outbound", cfg.Form.Campaign)
	assert.Equal(t, "input#work_email", cfg.Form.Selectors["email"])
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3000, cfg.Pipeline.InterLeadDelayMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
scrape:
  navigator: browser
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BUILDATA_SCRAPE_NAVIGATOR", "jina")
	t.Setenv("BUILDATA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "jina", cfg.Scrape.Navigator)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("BUILDATA_SERVER_PORT", "3000")
	t.Setenv("BUILDATA_PIPELINE_INVALID_STREAK_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Pipeline.InvalidStreakLimit)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Scrape.Navigator = "browser"
	cfg.Scrape.CacheTTLSecs = 120
	cfg.Browser.FormURL = "https://buildata.example.com/contacts/new"
	cfg.Pipeline.InvalidStreakLimit = 5
	cfg.Pipeline.InterLeadDelayMs = 3000
	cfg.Dropdown.PanelAttempts = 20
	cfg.Dropdown.ResultAttempts = 60
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Browser.FormURL = ""
	cfg.Scrape.CacheTTLSecs = 0
	cfg.Pipeline.InvalidStreakLimit = 0

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "browser.form_url is required")
	assert.Contains(t, err.Error(), "scrape.cache_ttl_secs must be > 0")
	assert.Contains(t, err.Error(), "pipeline.invalid_streak_limit must be >= 1")
}

func TestValidateJinaNavigatorNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Navigator = "jina"

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "jina.key is required")

	cfg.Jina.Key = "jina_key"
	assert.NoError(t, cfg.Validate("run"))

	cfg.Scrape.Navigator = "lynx"
	err = cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.navigator must be browser or jina")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is irrelevant outside serve.
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateOfflineModes(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate("resolve"))
	assert.NoError(t, cfg.Validate("normalize"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
