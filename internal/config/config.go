package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"xetra/internal/bucket"
	"xetra/internal/etl"
	"xetra/internal/store"
	"xetra/internal/util"
)

// DefaultPath is used when XETRA_CONFIG is unset.
const DefaultPath = "config/xetra.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration of the xetra job and server.
type Config struct {
	Source  Source  `yaml:"source"`
	Target  Target  `yaml:"target"`
	Storage Storage `yaml:"storage"`
	S3      S3      `yaml:"s3"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Source describes the raw tick files and the default input date.
type Source struct {
	InputDate       string   `yaml:"input_date"`
	InputDateFormat string   `yaml:"input_date_format"`
	Columns         []string `yaml:"columns"`

	ColISIN         string `yaml:"col_isin"`
	ColMnemonic     string `yaml:"col_mnemonic"`
	ColDate         string `yaml:"col_date"`
	ColTime         string `yaml:"col_time"`
	ColStartPrice   string `yaml:"col_start_price"`
	ColEndPrice     string `yaml:"col_end_price"`
	ColMinPrice     string `yaml:"col_min_price"`
	ColMaxPrice     string `yaml:"col_max_price"`
	ColTradedVolume string `yaml:"col_traded_volume"`
	ColCurrency     string `yaml:"col_currency"`
}

// Target describes the daily summary output.
type Target struct {
	ColISIN            string `yaml:"col_isin"`
	ColDate            string `yaml:"col_date"`
	ColOpeningPrice    string `yaml:"col_opening_price"`
	ColClosingPrice    string `yaml:"col_closing_price"`
	ColMinPrice        string `yaml:"col_min_price"`
	ColMaxPrice        string `yaml:"col_max_price"`
	ColTradedVolume    string `yaml:"col_traded_volume"`
	ColChangePrevClose string `yaml:"col_change_prev_close"`

	Key           string `yaml:"key"`
	KeyDateFormat string `yaml:"key_date_format"`
	Format        string `yaml:"format"`
}

// Storage selects the object store backend and names the two buckets.
type Storage struct {
	Backend      string `yaml:"backend"` // fs, sqlite or s3
	DataDir      string `yaml:"data_dir"`
	SQLitePath   string `yaml:"sqlite_path"`
	SourceBucket string `yaml:"source_bucket"`
	TargetBucket string `yaml:"target_bucket"`
	MetaKey      string `yaml:"meta_key"`
}

// S3 holds endpoints and credential lookups for the s3 backend. Credentials
// are read from the environment variables named here.
type S3 struct {
	SourceEndpoint string        `yaml:"source_endpoint"`
	TargetEndpoint string        `yaml:"target_endpoint"`
	Region         string        `yaml:"region"`
	AccessKeyEnv   string        `yaml:"access_key_env"`
	SecretKeyEnv   string        `yaml:"secret_key_env"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns $XETRA_CONFIG, or DefaultPath when it is unset.
func Path() string {
	if v := os.Getenv("XETRA_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at path, applies environment
// overrides (including any from a .env file in the working directory),
// fills in defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	// A missing .env is fine; variables already set win over it.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("XETRA_INPUT_DATE"); v != "" {
		cfg.Source.InputDate = v
	}
	if v := os.Getenv("XETRA_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("XETRA_SOURCE_BUCKET"); v != "" {
		cfg.Storage.SourceBucket = v
	}
	if v := os.Getenv("XETRA_TARGET_BUCKET"); v != "" {
		cfg.Storage.TargetBucket = v
	}
	if v := os.Getenv("S3_SOURCE_ENDPOINT"); v != "" {
		cfg.S3.SourceEndpoint = v
	}
	if v := os.Getenv("S3_TARGET_ENDPOINT"); v != "" {
		cfg.S3.TargetEndpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Source.InputDateFormat == "" {
		c.Source.InputDateFormat = "%Y-%m-%d"
	}
	if c.Target.KeyDateFormat == "" {
		c.Target.KeyDateFormat = "%Y%m%d"
	}
	if c.Target.Format == "" {
		c.Target.Format = "parquet"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "fs"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/xetra.db"
	}
	if c.S3.AccessKeyEnv == "" {
		c.S3.AccessKeyEnv = "AWS_ACCESS_KEY_ID"
	}
	if c.S3.SecretKeyEnv == "" {
		c.S3.SecretKeyEnv = "AWS_SECRET_ACCESS_KEY"
	}
	if c.S3.MaxAttempts == 0 {
		c.S3.MaxAttempts = 3
	}
	if c.S3.RetryDelay == 0 {
		c.S3.RetryDelay = 500 * time.Millisecond
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks that the configuration can drive a pipeline run.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.InputDate == "" {
		errs = append(errs, errors.New("source.input_date is required"))
	} else if _, err := util.ParseDate(c.Source.InputDate, c.Source.InputDateFormat); err != nil {
		errs = append(errs, fmt.Errorf("source.input_date: %w", err))
	}

	required := map[string]string{
		"source.col_isin":              c.Source.ColISIN,
		"source.col_date":              c.Source.ColDate,
		"source.col_time":              c.Source.ColTime,
		"source.col_start_price":       c.Source.ColStartPrice,
		"source.col_min_price":         c.Source.ColMinPrice,
		"source.col_max_price":         c.Source.ColMaxPrice,
		"source.col_traded_volume":     c.Source.ColTradedVolume,
		"target.col_isin":              c.Target.ColISIN,
		"target.col_date":              c.Target.ColDate,
		"target.col_opening_price":     c.Target.ColOpeningPrice,
		"target.col_closing_price":     c.Target.ColClosingPrice,
		"target.col_min_price":         c.Target.ColMinPrice,
		"target.col_max_price":         c.Target.ColMaxPrice,
		"target.col_traded_volume":     c.Target.ColTradedVolume,
		"target.col_change_prev_close": c.Target.ColChangePrevClose,
	}
	for _, name := range sortedKeys(required) {
		if required[name] == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	// A projection that omits a role column would leave every tick
	// incomplete.
	if len(c.Source.Columns) > 0 {
		projected := make(map[string]bool, len(c.Source.Columns))
		for _, col := range c.Source.Columns {
			projected[col] = true
		}
		for _, name := range sortedKeys(required) {
			v := required[name]
			if strings.HasPrefix(name, "source.") && v != "" && !projected[v] {
				errs = append(errs, fmt.Errorf("%s %q is not in source.columns", name, v))
			}
		}
	}

	if _, err := store.ParseFormat(c.Target.Format); err != nil {
		errs = append(errs, fmt.Errorf("target.format: %w", err))
	}

	switch c.Storage.Backend {
	case "fs", "sqlite":
	case "s3":
		if c.S3.SourceEndpoint == "" || c.S3.TargetEndpoint == "" {
			errs = append(errs, errors.New("s3.source_endpoint and s3.target_endpoint are required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be fs, sqlite or s3", c.Storage.Backend))
	}
	if c.Storage.SourceBucket == "" || c.Storage.TargetBucket == "" {
		errs = append(errs, errors.New("storage.source_bucket and storage.target_bucket are required"))
	}

	return errors.Join(errs...)
}

// Pipeline returns the pipeline configuration derived from c.
func (c *Config) Pipeline() (etl.Config, error) {
	format, err := store.ParseFormat(c.Target.Format)
	if err != nil {
		return etl.Config{}, err
	}
	return etl.Config{
		Source: bucket.SourceConfig{
			InputDate:       c.Source.InputDate,
			DateFormat:      c.Source.InputDateFormat,
			Columns:         append([]string(nil), c.Source.Columns...),
			ColISIN:         c.Source.ColISIN,
			ColMnemonic:     c.Source.ColMnemonic,
			ColDate:         c.Source.ColDate,
			ColTime:         c.Source.ColTime,
			ColStartPrice:   c.Source.ColStartPrice,
			ColEndPrice:     c.Source.ColEndPrice,
			ColMinPrice:     c.Source.ColMinPrice,
			ColMaxPrice:     c.Source.ColMaxPrice,
			ColTradedVolume: c.Source.ColTradedVolume,
			ColCurrency:     c.Source.ColCurrency,
		},
		Target: bucket.TargetConfig{
			ColISIN:            c.Target.ColISIN,
			ColDate:            c.Target.ColDate,
			ColOpeningPrice:    c.Target.ColOpeningPrice,
			ColClosingPrice:    c.Target.ColClosingPrice,
			ColMinPrice:        c.Target.ColMinPrice,
			ColMaxPrice:        c.Target.ColMaxPrice,
			ColTradedVolume:    c.Target.ColTradedVolume,
			ColChangePrevClose: c.Target.ColChangePrevClose,
			KeyPrefix:          c.Target.Key,
			KeyDateFormat:      c.Target.KeyDateFormat,
			Format:             format,
		},
	}, nil
}
