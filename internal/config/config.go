package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/couchcryptid/covid-data-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultSourceURLs are the upstream locations of each source.
var DefaultSourceURLs = map[domain.SourceID]string{
	domain.SourceNYTUS:       "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us.csv",
	domain.SourceNYTStates:   "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-states.csv",
	domain.SourceNYTCounties: "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv",
	domain.SourceOWID:        "https://covid.ourworldindata.org/data/owid-covid-data.csv",
	domain.SourceCTPUS:       "https://covidtracking.com/data/download/national-history.csv",
	domain.SourceCTPStates:   "https://covidtracking.com/data/download/all-states-history.csv",
}

// sourceEnv names the environment variable overriding each source URL.
var sourceEnv = map[domain.SourceID]string{
	domain.SourceNYTUS:       "NYT_US_URL",
	domain.SourceNYTStates:   "NYT_STATES_URL",
	domain.SourceNYTCounties: "NYT_COUNTIES_URL",
	domain.SourceOWID:        "OWID_URL",
	domain.SourceCTPUS:       "CTP_US_URL",
	domain.SourceCTPStates:   "CTP_STATES_URL",
}

// Config holds all job settings. Values come from defaults, then the optional
// TOML file named by CONFIG_FILE, then environment variables.
type Config struct {
	DataSetName string `toml:"data_set_name"`
	DataDir     string `toml:"data_dir"`
	// ReferenceDir replaces the embedded reference tables when set.
	ReferenceDir string `toml:"reference_dir"`

	S3 S3Config `toml:"s3"`

	FetchTimeout     time.Duration `toml:"-"`
	FetchMaxRetries  int           `toml:"fetch_max_retries"`
	FetchConcurrency int           `toml:"fetch_concurrency"`

	// Sources maps each source id to a URL, file:// URL or local path.
	Sources map[domain.SourceID]string `toml:"sources"`

	PushgatewayURL  string        `toml:"pushgateway_url"`
	LogLevel        string        `toml:"log_level"`
	LogFormat       string        `toml:"log_format"`
	ShutdownTimeout time.Duration `toml:"-"`
}

// S3Config describes the publish target.
type S3Config struct {
	Bucket               string `toml:"bucket"`
	Region               string `toml:"region"`
	EndpointURL          string `toml:"endpoint_url"`
	VerifyUpload         bool   `toml:"verify_upload"`
	ServerSideEncryption bool   `toml:"server_side_encryption"`
	MaxRetries           int    `toml:"max_retries"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `toml:"-"`
	SecretAccessKey string `toml:"-"`
}

// fileConfig is the TOML document. Durations are strings there.
type fileConfig struct {
	Config
	FetchTimeout string `toml:"fetch_timeout"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	sources := make(map[domain.SourceID]string, len(DefaultSourceURLs))
	for id, u := range DefaultSourceURLs {
		sources[id] = u
	}
	return &Config{
		DataDir: filepath.Join(os.TempDir(), "covid-etl"),
		S3: S3Config{
			Region:       "us-east-1",
			VerifyUpload: true,
			MaxRetries:   3,
		},
		FetchTimeout:     60 * time.Second,
		FetchMaxRetries:  4,
		FetchConcurrency: 3,
		Sources:          sources,
		LogLevel:         "info",
		LogFormat:        "json",
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load reads configuration from CONFIG_FILE (if set) and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = shutdownTimeout

	cfg.DataSetName = sharedcfg.EnvOrDefault("DATA_SET_NAME", cfg.DataSetName)
	cfg.DataDir = sharedcfg.EnvOrDefault("DATA_DIR", cfg.DataDir)
	cfg.ReferenceDir = sharedcfg.EnvOrDefault("REFERENCE_DIR", cfg.ReferenceDir)
	cfg.S3.Bucket = sharedcfg.EnvOrDefault("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Region = sharedcfg.EnvOrDefault("AWS_REGION", cfg.S3.Region)
	cfg.S3.EndpointURL = sharedcfg.EnvOrDefault("S3_ENDPOINT_URL", cfg.S3.EndpointURL)
	cfg.S3.AccessKeyID = sharedcfg.EnvOrDefault("S3_ACCESS_KEY_ID", cfg.S3.AccessKeyID)
	cfg.S3.SecretAccessKey = sharedcfg.EnvOrDefault("S3_SECRET_ACCESS_KEY", cfg.S3.SecretAccessKey)
	cfg.PushgatewayURL = sharedcfg.EnvOrDefault("PUSHGATEWAY_URL", cfg.PushgatewayURL)
	cfg.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	for id, key := range sourceEnv {
		cfg.Sources[id] = sharedcfg.EnvOrDefault(key, cfg.Sources[id])
	}

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.New("invalid FETCH_TIMEOUT")
		}
		cfg.FetchTimeout = d
	}
	if cfg.FetchMaxRetries, err = envInt("FETCH_MAX_RETRIES", cfg.FetchMaxRetries, 0); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = envInt("FETCH_CONCURRENCY", cfg.FetchConcurrency, 1); err != nil {
		return nil, err
	}
	if cfg.S3.MaxRetries, err = envInt("S3_MAX_RETRIES", cfg.S3.MaxRetries, 0); err != nil {
		return nil, err
	}
	if cfg.S3.VerifyUpload, err = envBool("S3_VERIFY_UPLOAD", cfg.S3.VerifyUpload); err != nil {
		return nil, err
	}
	if cfg.S3.ServerSideEncryption, err = envBool("S3_SERVER_SIDE_ENCRYPTION", cfg.S3.ServerSideEncryption); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if fc.FetchTimeout != "" {
		d, err := time.ParseDuration(fc.FetchTimeout)
		if err != nil || d <= 0 {
			return errors.New("invalid fetch_timeout in config file")
		}
		fc.Config.FetchTimeout = d
	}

	sources := c.Sources
	for id, u := range fc.Sources {
		sources[id] = u
	}
	*c = fc.Config
	c.Sources = sources
	return nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.DataSetName == "" {
		return errors.New("DATA_SET_NAME is required")
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be at least 1")
	}
	for _, id := range domain.AllSources {
		if c.Sources[id] == "" {
			return fmt.Errorf("source %s has no URL", id)
		}
	}
	return nil
}

// ValidatePublish checks the settings needed to publish to S3.
func (c *Config) ValidatePublish() error {
	if c.S3.Bucket == "" {
		return errors.New("S3_BUCKET is required")
	}
	if c.S3.Region == "" {
		return errors.New("AWS_REGION is required")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be a boolean", key)
	}
	return b, nil
}

func envInt(key string, fallback, minimum int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
