// Package config provides configuration management for the countyscan
// pipeline. It handles loading, validation, and access to configuration
// values from YAML files and environment variables via viper. Validation
// failures are fatal: they abort the run before any network activity.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/countyscan/internal/logger"
)

// Default configuration values.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryDelay     = 2 * time.Second
	DefaultDelayMin       = 1 * time.Second
	DefaultDelayMax       = 3 * time.Second
	DefaultMaxBodySize    = 10 * 1024 * 1024 // 10MB
	DefaultUserAgent      = "countyscan/1.0 (+https://github.com/jonesrussell/countyscan)"
	DefaultMinScore       = 1
	DefaultMaxPrograms    = 20
	DefaultMaxTextChars   = 20000
	DefaultMaxPDFLinks    = 20
	DefaultWorkers        = 5
	DefaultDataDir        = "data"
	DefaultRegistryPath   = "config/counties.yaml"
)

// Politeness granularity values for FetchConfig.Politeness.
const (
	PolitenessPerHost    = "per_host"
	PolitenessPerProcess = "per_process"
)

// FetchConfig configures the HTTP fetcher and its politeness gate.
type FetchConfig struct {
	// RequestTimeout is the timeout for each request
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// MaxRetries is the retry count for transient failures (connection, 5xx)
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	// DelayMin is the lower bound of the randomized inter-request delay
	DelayMin time.Duration `yaml:"delay_min" mapstructure:"delay_min"`
	// DelayMax is the upper bound of the randomized inter-request delay
	DelayMax time.Duration `yaml:"delay_max" mapstructure:"delay_max"`
	// Politeness selects delay granularity: per_host or per_process
	Politeness string `yaml:"politeness" mapstructure:"politeness"`
	// UserAgent is sent on every request
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	// MaxBodySize caps response bodies in bytes
	MaxBodySize int64 `yaml:"max_body_size" mapstructure:"max_body_size"`
}

// NavigationConfig configures the tiered discovery navigator.
type NavigationConfig struct {
	// MinScore is the qualification threshold for a link at any tier
	MinScore int `yaml:"min_score" mapstructure:"min_score"`
	// MaxPrograms caps program candidates per county
	MaxPrograms int `yaml:"max_programs" mapstructure:"max_programs"`
	// FollowLanguageFallback enables rescoring a tier against the fallback
	// keyword set when the primary set yields nothing
	FollowLanguageFallback bool `yaml:"follow_language_fallback" mapstructure:"follow_language_fallback"`
}

// ExtractConfig configures deep content extraction.
type ExtractConfig struct {
	// MaxTextChars is the stored-text truncation limit
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	// MaxPDFLinks caps document links per page
	MaxPDFLinks int `yaml:"max_pdf_links" mapstructure:"max_pdf_links"`
}

// PipelineConfig configures worker pools and run budgets.
type PipelineConfig struct {
	// Workers is the bounded pool size for discovery and extraction
	Workers int `yaml:"workers" mapstructure:"workers"`
	// MaxCounties caps counties processed per run (0 = no limit)
	MaxCounties int `yaml:"max_counties" mapstructure:"max_counties"`
	// MaxPages caps pages extracted per run (0 = no limit)
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
}

// StructuringConfig configures the external structuring collaborator.
type StructuringConfig struct {
	// Enabled turns on post-extraction structuring
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// BaseURL of the chat-completions endpoint
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Model name to request
	Model string `yaml:"model" mapstructure:"model"`
	// RequestTimeout for structuring calls
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// RequestsPerSecond throttles structuring calls
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// Config represents the application configuration.
type Config struct {
	// Log holds logger configuration
	Log logger.Config `yaml:"log" mapstructure:"log"`
	// DataDir is the root directory for run artifacts
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	// RegistryPath is the counties/keywords YAML file
	RegistryPath string `yaml:"registry_path" mapstructure:"registry_path"`
	// Fetch holds fetcher configuration
	Fetch FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	// Navigation holds navigator configuration
	Navigation NavigationConfig `yaml:"navigation" mapstructure:"navigation"`
	// Extract holds extraction configuration
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	// Pipeline holds worker pool and budget configuration
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	// Structuring holds the collaborator client configuration
	Structuring StructuringConfig `yaml:"structuring" mapstructure:"structuring"`
}

// Load reads configuration from the given file (optional) plus environment
// variables, applies defaults, and validates. The returned error is fatal
// configuration failure; nothing network-facing runs before it is checked.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("COUNTYSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional; defaults and environment cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds viper with defaults consulted when neither the config
// file nor environment provides a value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("registry_path", DefaultRegistryPath)

	v.SetDefault("fetch.request_timeout", DefaultRequestTimeout)
	v.SetDefault("fetch.max_retries", DefaultMaxRetries)
	v.SetDefault("fetch.retry_delay", DefaultRetryDelay)
	v.SetDefault("fetch.delay_min", DefaultDelayMin)
	v.SetDefault("fetch.delay_max", DefaultDelayMax)
	v.SetDefault("fetch.politeness", PolitenessPerHost)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.max_body_size", DefaultMaxBodySize)

	v.SetDefault("navigation.min_score", DefaultMinScore)
	v.SetDefault("navigation.max_programs", DefaultMaxPrograms)
	v.SetDefault("navigation.follow_language_fallback", false)

	v.SetDefault("extract.max_text_chars", DefaultMaxTextChars)
	v.SetDefault("extract.max_pdf_links", DefaultMaxPDFLinks)

	v.SetDefault("pipeline.workers", DefaultWorkers)
	v.SetDefault("pipeline.max_counties", 0)
	v.SetDefault("pipeline.max_pages", 0)

	v.SetDefault("structuring.enabled", false)
	v.SetDefault("structuring.base_url", "http://localhost:11434/v1/chat/completions")
	v.SetDefault("structuring.model", "llama3.1:8b-instruct")
	v.SetDefault("structuring.request_timeout", time.Minute)
	v.SetDefault("structuring.requests_per_second", 1.0)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.RegistryPath == "" {
		return errors.New("registry_path must not be empty")
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Navigation.Validate(); err != nil {
		return fmt.Errorf("navigation: %w", err)
	}
	if err := c.Extract.Validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Validate validates the fetcher configuration.
func (c *FetchConfig) Validate() error {
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.DelayMin < 0 || c.DelayMax < 0 {
		return errors.New("delays must be non-negative")
	}
	if c.DelayMax < c.DelayMin {
		return errors.New("delay_max must be >= delay_min")
	}
	if c.Politeness != PolitenessPerHost && c.Politeness != PolitenessPerProcess {
		return fmt.Errorf("politeness must be %q or %q", PolitenessPerHost, PolitenessPerProcess)
	}
	if c.MaxBodySize <= 0 {
		return errors.New("max_body_size must be positive")
	}
	return nil
}

// Validate validates the navigator configuration.
func (c *NavigationConfig) Validate() error {
	if c.MinScore < 1 {
		return errors.New("min_score must be at least 1")
	}
	if c.MaxPrograms < 1 {
		return errors.New("max_programs must be at least 1")
	}
	return nil
}

// Validate validates the extraction configuration.
func (c *ExtractConfig) Validate() error {
	if c.MaxTextChars < 1 {
		return errors.New("max_text_chars must be positive")
	}
	if c.MaxPDFLinks < 1 {
		return errors.New("max_pdf_links must be positive")
	}
	return nil
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.MaxCounties < 0 || c.MaxPages < 0 {
		return errors.New("budgets must be non-negative")
	}
	return nil
}
