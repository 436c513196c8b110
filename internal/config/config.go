package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Leads     LeadsConfig     `yaml:"leads" mapstructure:"leads"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Form      FormConfig      `yaml:"form" mapstructure:"form"`
	Dropdown  DropdownConfig  `yaml:"dropdown" mapstructure:"dropdown"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LeadsConfig configures lead ingestion.
type LeadsConfig struct {
	AliasFile string `yaml:"alias_file" mapstructure:"alias_file"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// ReferenceConfig points at the reference company directory.
type ReferenceConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ScrapeConfig configures fact scraping.
type ScrapeConfig struct {
	Navigator         string  `yaml:"navigator" mapstructure:"navigator"`
	CacheTTLSecs      int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	SearchBaseURL     string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	ProfileQuery      string  `yaml:"profile_query" mapstructure:"profile_query"`
	DirectoryQuery    string  `yaml:"directory_query" mapstructure:"directory_query"`
	EmailQuery        string  `yaml:"email_query" mapstructure:"email_query"`
	ProfileHost       string  `yaml:"profile_host" mapstructure:"profile_host"`
	SearchSettleMs    int     `yaml:"search_settle_ms" mapstructure:"search_settle_ms"`
	PageSettleMs      int     `yaml:"page_settle_ms" mapstructure:"page_settle_ms"`
	ProbeTimeoutSecs  int     `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
	SearchRatePerSec  float64 `yaml:"search_rate_per_sec" mapstructure:"search_rate_per_sec"`
	SearchRetries     int     `yaml:"search_retries" mapstructure:"search_retries"`
	ChallengeWaitSecs int     `yaml:"challenge_wait_secs" mapstructure:"challenge_wait_secs"`
	ChallengePollSecs int     `yaml:"challenge_poll_secs" mapstructure:"challenge_poll_secs"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CacheTTL returns the fact cache TTL.
func (s ScrapeConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSecs) * time.Second
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	// Format is the reader output: markdown, html or text.
	Format string `yaml:"format" mapstructure:"format"`
}

// BrowserConfig configures the Chrome instance that renders search pages
// and drives the destination form.
type BrowserConfig struct {
	Headless  bool   `yaml:"headless" mapstructure:"headless"`
	FormURL   string `yaml:"form_url" mapstructure:"form_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	ExecPath  string `yaml:"exec_path" mapstructure:"exec_path"`
	// RemoteURL attaches to an already running browser (for example one the
	// operator is logged into) instead of launching a new one.
	RemoteURL string `yaml:"remote_url" mapstructure:"remote_url"`
}

// FormConfig configures the destination form fill.
type FormConfig struct {
	// Selectors overrides the CSS selector for a logical field id.
	Selectors   map[string]string `yaml:"selectors" mapstructure:"selectors"`
	AutoButtons bool              `yaml:"auto_buttons" mapstructure:"auto_buttons"`
	// Campaign is selected for leads whose row carries no campaign.
	Campaign     string `yaml:"campaign" mapstructure:"campaign"`
	Submit       bool   `yaml:"submit" mapstructure:"submit"`
	ButtonWaitMs int    `yaml:"button_wait_ms" mapstructure:"button_wait_ms"`
	FieldPauseMs int    `yaml:"field_pause_ms" mapstructure:"field_pause_ms"`
	SpecLoadMs   int    `yaml:"spec_load_ms" mapstructure:"spec_load_ms"`
	SubmitWaitMs int    `yaml:"submit_wait_ms" mapstructure:"submit_wait_ms"`
}

// DropdownConfig tunes the searchable dropdown waits.
type DropdownConfig struct {
	OpenWaitMs       int `yaml:"open_wait_ms" mapstructure:"open_wait_ms"`
	PanelAttempts    int `yaml:"panel_attempts" mapstructure:"panel_attempts"`
	PanelIntervalMs  int `yaml:"panel_interval_ms" mapstructure:"panel_interval_ms"`
	ResultAttempts   int `yaml:"result_attempts" mapstructure:"result_attempts"`
	ResultIntervalMs int `yaml:"result_interval_ms" mapstructure:"result_interval_ms"`
	KeystrokeMs      int `yaml:"keystroke_ms" mapstructure:"keystroke_ms"`
	SettleMs         int `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// PipelineConfig configures the lead run.
type PipelineConfig struct {
	InterLeadDelayMs   int `yaml:"inter_lead_delay_ms" mapstructure:"inter_lead_delay_ms"`
	InvalidStreakLimit int `yaml:"invalid_streak_limit" mapstructure:"invalid_streak_limit"`
	ScrapeDelayMs      int `yaml:"scrape_delay_ms" mapstructure:"scrape_delay_ms"`
}

// ServerConfig configures the control server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BUILDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reference.path", "data/reference_companies.csv")
	v.SetDefault("scrape.navigator", "browser")
	v.SetDefault("scrape.cache_ttl_secs", 120)
	v.SetDefault("scrape.search_base_url", "https://www.google.com/search")
	v.SetDefault("scrape.profile_query", "zoominfo")
	v.SetDefault("scrape.directory_query", "zoominfo employee directory")
	v.SetDefault("scrape.email_query", "rocketreach email")
	v.SetDefault("scrape.profile_host", "zoominfo.com")
	v.SetDefault("scrape.search_settle_ms", 4000)
	v.SetDefault("scrape.page_settle_ms", 6000)
	v.SetDefault("scrape.probe_timeout_secs", 30)
	v.SetDefault("scrape.search_rate_per_sec", 0.5)
	v.SetDefault("scrape.search_retries", 2)
	v.SetDefault("scrape.challenge_wait_secs", 0)
	v.SetDefault("scrape.challenge_poll_secs", 5)
	v.SetDefault("scrape.breaker_threshold", 3)
	v.SetDefault("scrape.breaker_reset_secs", 300)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.format", "markdown")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("form.auto_buttons", true)
	v.SetDefault("form.button_wait_ms", 2000)
	v.SetDefault("form.field_pause_ms", 500)
	v.SetDefault("form.spec_load_ms", 4000)
	v.SetDefault("form.submit_wait_ms", 1500)
	v.SetDefault("dropdown.open_wait_ms", 1000)
	v.SetDefault("dropdown.panel_attempts", 20)
	v.SetDefault("dropdown.panel_interval_ms", 250)
	v.SetDefault("dropdown.result_attempts", 60)
	v.SetDefault("dropdown.result_interval_ms", 200)
	v.SetDefault("dropdown.keystroke_ms", 30)
	v.SetDefault("dropdown.settle_ms", 2000)
	v.SetDefault("pipeline.inter_lead_delay_ms", 3000)
	v.SetDefault("pipeline.invalid_streak_limit", 5)
	v.SetDefault("pipeline.scrape_delay_ms", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "serve":
		switch c.Scrape.Navigator {
		case "browser":
		case "jina":
			if c.Jina.Key == "" {
				errs = append(errs, "jina.key is required when scrape.navigator is jina")
			}
		default:
			errs = append(errs, "scrape.navigator must be browser or jina")
		}
		if c.Browser.FormURL == "" {
			errs = append(errs, "browser.form_url is required")
		}
		if c.Scrape.CacheTTLSecs <= 0 {
			errs = append(errs, "scrape.cache_ttl_secs must be > 0")
		}
		if c.Pipeline.InvalidStreakLimit < 1 {
			errs = append(errs, "pipeline.invalid_streak_limit must be >= 1")
		}
		if c.Pipeline.InterLeadDelayMs < 0 {
			errs = append(errs, "pipeline.inter_lead_delay_ms must be >= 0")
		}
		if c.Dropdown.PanelAttempts < 1 || c.Dropdown.ResultAttempts < 1 {
			errs = append(errs, "dropdown attempts must be >= 1")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "resolve", "normalize":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
