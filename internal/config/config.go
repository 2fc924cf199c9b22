package config

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the verdict cache and run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds the adjudication model settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Model         string `yaml:"model" mapstructure:"model"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseMs   int    `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	BreakerFails  int    `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerCoolS  int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	Username     string   `yaml:"username" mapstructure:"username"`
	KeyPath      string   `yaml:"key_path" mapstructure:"key_path"`
	LoginURL     string   `yaml:"login_url" mapstructure:"login_url"`
	AccessToken  string   `yaml:"access_token" mapstructure:"access_token"`
	RateLimit    float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	AccountTypes []string `yaml:"account_types" mapstructure:"account_types"`
}

// SourcesConfig names the input workbooks. Paths may be local files or
// http(s)/ftp URLs.
type SourcesConfig struct {
	Equipment       []string `yaml:"equipment" mapstructure:"equipment"`
	EquipmentSheets []string `yaml:"equipment_sheets" mapstructure:"equipment_sheets"`
	CRM             string   `yaml:"crm" mapstructure:"crm"`
	CRMSheets       []string `yaml:"crm_sheets" mapstructure:"crm_sheets"`
	CRMSource       string   `yaml:"crm_source" mapstructure:"crm_source"`
	FetchTimeoutSec int      `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	TempDir         string   `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ReconcileConfig configures name matching and adjudication.
type ReconcileConfig struct {
	GoodMin         float64  `yaml:"good_min" mapstructure:"good_min"`
	OkayMin         float64  `yaml:"okay_min" mapstructure:"okay_min"`
	StripLegalForms bool     `yaml:"strip_legal_forms" mapstructure:"strip_legal_forms"`
	Adjudicate      bool     `yaml:"adjudicate" mapstructure:"adjudicate"`
	EscalateTiers   []string `yaml:"escalate_tiers" mapstructure:"escalate_tiers"`
	Workers         int      `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs     int      `yaml:"adjudication_timeout_secs" mapstructure:"adjudication_timeout_secs"`
	RPS             float64  `yaml:"adjudication_rps" mapstructure:"adjudication_rps"`
}

// ScoringConfig configures the opportunity scorer.
type ScoringConfig struct {
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
	// AsOf pins the scoring date (YYYY-MM-DD); empty means today.
	AsOf string `yaml:"as_of" mapstructure:"as_of"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// ReloadCron is a standard five-field cron spec; empty disables
	// scheduled reloads.
	ReloadCron string `yaml:"reload_cron" mapstructure:"reload_cron"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HITRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "hitrate.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.reload_cron", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("anthropic.retry_base_ms", 500)
	v.SetDefault("anthropic.breaker_failures", 5)
	v.SetDefault("anthropic.breaker_cooldown_secs", 30)
	v.SetDefault("anthropic.cache_ttl_hours", 24*30)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.access_token", "")
	v.SetDefault("sources.equipment", []string{})
	v.SetDefault("sources.crm", "")
	v.SetDefault("sources.crm_source", "xlsx")
	v.SetDefault("sources.fetch_timeout_secs", 120)
	v.SetDefault("reconcile.good_min", 80)
	v.SetDefault("reconcile.okay_min", 50)
	v.SetDefault("reconcile.strip_legal_forms", false)
	v.SetDefault("reconcile.adjudicate", false)
	v.SetDefault("reconcile.escalate_tiers", []string{"Okay", "Good"})
	v.SetDefault("reconcile.workers", 8)
	v.SetDefault("reconcile.adjudication_timeout_secs", 20)
	v.SetDefault("reconcile.adjudication_rps", 2)
	v.SetDefault("scoring.weights_file", "")
	v.SetDefault("scoring.as_of", "")

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

// Validate checks the settings a command mode needs: "reconcile", "score"
// or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	fail := func(msg string, args ...any) {
		errs = append(errs, eris.Errorf(msg, args...).Error())
	}

	switch mode {
	case "reconcile", "score", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(c.Sources.Equipment) == 0 {
		fail("sources.equipment is required")
	}
	switch strings.ToLower(c.Sources.CRMSource) {
	case "", "xlsx":
		if c.Sources.CRM == "" {
			fail("sources.crm is required")
		}
	case "salesforce":
		if c.Salesforce.ClientID == "" && c.Salesforce.AccessToken == "" {
			fail("salesforce.client_id is required when sources.crm_source is salesforce")
		}
	default:
		fail("sources.crm_source must be xlsx or salesforce, got %q", c.Sources.CRMSource)
	}

	if c.Reconcile.OkayMin <= 0 || c.Reconcile.GoodMin <= c.Reconcile.OkayMin || c.Reconcile.GoodMin >= 100 {
		fail("reconcile thresholds need 0 < okay_min < good_min < 100")
	}
	if c.Reconcile.Workers < 1 || c.Reconcile.Workers > 64 {
		fail("reconcile.workers must be between 1 and 64")
	}
	if c.Reconcile.Adjudicate && c.Anthropic.Key == "" {
		fail("anthropic.key is required when reconcile.adjudicate is set")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			fail("store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			fail("store.database_url is required for postgres")
		}
	case "none":
	default:
		fail("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver)
	}

	if _, err := c.Scoring.AsOfTime(); err != nil {
		fail("scoring.as_of must be YYYY-MM-DD")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			fail("server.port must be > 0")
		}
		if c.Server.ReloadCron != "" {
			if _, err := cron.ParseStandard(c.Server.ReloadCron); err != nil {
				fail("server.reload_cron is invalid: %v", err)
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AsOfTime returns the pinned scoring date, or the zero time when unset.
func (s ScoringConfig) AsOfTime() (time.Time, error) {
	if s.AsOf == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s.AsOf)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "config: parse scoring.as_of")
	}
	return t, nil
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
