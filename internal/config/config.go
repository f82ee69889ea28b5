// Package config handles configuration loading for filingret.
// It supports YAML config files with environment variable overrides and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g.
// FILINGRET_SEC_USER_AGENT.
const EnvPrefix = "FILINGRET"

// Config represents the complete application configuration.
type Config struct {
	SEC        SECConfig        `mapstructure:"sec"        yaml:"sec"`
	Prices     PricesConfig     `mapstructure:"prices"     yaml:"prices"`
	FRED       FREDConfig       `mapstructure:"fred"       yaml:"fred"`
	Collection CollectionConfig `mapstructure:"collection" yaml:"collection"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	Quality    QualityConfig    `mapstructure:"quality"    yaml:"quality"`
	Model      ModelConfig      `mapstructure:"model"      yaml:"model"`
	Reference  ReferenceData    `mapstructure:"reference"  yaml:"reference"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// SECConfig holds SEC EDGAR access settings. EDGAR rejects requests without
// a descriptive User-Agent.
type SECConfig struct {
	UserAgent      string `mapstructure:"user_agent"       yaml:"user_agent"`
	DataURL        string `mapstructure:"data_url"         yaml:"data_url"`         // data.sec.gov
	WWWURL         string `mapstructure:"www_url"          yaml:"www_url"`          // www.sec.gov
	RequestDelayMs int    `mapstructure:"request_delay_ms" yaml:"request_delay_ms"` // between EDGAR calls
}

// PricesConfig holds price-history source settings.
type PricesConfig struct {
	BaseURL        string `mapstructure:"base_url"         yaml:"base_url"`
	RequestDelayMs int    `mapstructure:"request_delay_ms" yaml:"request_delay_ms"`
	PadDays        int    `mapstructure:"pad_days"         yaml:"pad_days"`    // calendar buffer past the horizon
	Concurrency    int    `mapstructure:"concurrency"      yaml:"concurrency"` // prefetch workers; 1 = sequential
}

// FREDConfig holds FRED API settings. Macro features are skipped when the key
// is empty.
type FREDConfig struct {
	APIKey  string `mapstructure:"api_key"  yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// CollectionConfig controls which filings are collected and which features
// are extracted for them.
type CollectionConfig struct {
	Tickers     []string `mapstructure:"tickers"      yaml:"tickers"`
	Since       string   `mapstructure:"since"        yaml:"since"` // YYYY-MM-DD
	FilingTypes []string `mapstructure:"filing_types" yaml:"filing_types"`
	Horizons    []int    `mapstructure:"horizons"     yaml:"horizons"`
	Extractors  []string `mapstructure:"extractors"   yaml:"extractors"` // xbrl, consensus, text, volume, market, short, macro
	MarketIndex string   `mapstructure:"market_index" yaml:"market_index"`
	UseFeed     bool     `mapstructure:"use_feed"     yaml:"use_feed"` // Atom feed instead of submissions JSON
}

// EvaluationConfig holds backtest settings.
type EvaluationConfig struct {
	Horizon           int    `mapstructure:"horizon"             yaml:"horizon"`
	Predictor         string `mapstructure:"predictor"           yaml:"predictor"` // always-positive, surprise, logistic
	ExactHorizonOnly  bool   `mapstructure:"exact_horizon_only"  yaml:"exact_horizon_only"`
	AllowSimulated    bool   `mapstructure:"allow_simulated"     yaml:"allow_simulated"`
	ConfidenceBuckets int    `mapstructure:"confidence_buckets"  yaml:"confidence_buckets"`
}

// QualityConfig holds data-quality thresholds. Shares are percentages of the
// batch above which the guard reports the anomaly as systemic.
type QualityConfig struct {
	HighOutlierPct       float64 `mapstructure:"high_outlier_pct"        yaml:"high_outlier_pct"`
	ExtremeOutlierPct    float64 `mapstructure:"extreme_outlier_pct"     yaml:"extreme_outlier_pct"`
	MaxZeroSharePct      float64 `mapstructure:"max_zero_share_pct"      yaml:"max_zero_share_pct"`
	MaxWipeoutSharePct   float64 `mapstructure:"max_wipeout_share_pct"   yaml:"max_wipeout_share_pct"`
	MaxDuplicateSharePct float64 `mapstructure:"max_duplicate_share_pct" yaml:"max_duplicate_share_pct"`
}

// ModelConfig holds logistic model training settings.
type ModelConfig struct {
	Path          string  `mapstructure:"path"           yaml:"path"`
	LearningRate  float64 `mapstructure:"learning_rate"  yaml:"learning_rate"`
	Iterations    int     `mapstructure:"iterations"     yaml:"iterations"`
	L2            float64 `mapstructure:"l2"             yaml:"l2"`
	TrainFraction float64 `mapstructure:"train_fraction" yaml:"train_fraction"`
}

// ReferenceData is the static lookup data shared by collection and
// prediction: ticker → CIK, ticker → market cap (billions USD) and
// calendar year → market regime. It is loaded once and passed by reference.
type ReferenceData struct {
	CIKs       map[string]string  `mapstructure:"ciks"        yaml:"ciks"`
	MarketCaps map[string]float64 `mapstructure:"market_caps" yaml:"market_caps"`
	Regimes    map[string]string  `mapstructure:"regimes"     yaml:"regimes"`
}

// CIK returns the zero-padded CIK of a ticker.
func (r *ReferenceData) CIK(ticker string) (string, bool) {
	cik, ok := r.CIKs[strings.ToUpper(ticker)]
	return cik, ok
}

// MarketCap returns a ticker's market cap in billions USD.
func (r *ReferenceData) MarketCap(ticker string) (float64, bool) {
	v, ok := r.MarketCaps[strings.ToUpper(ticker)]
	return v, ok
}

// Regime returns the configured market regime of a calendar year, or "flat".
func (r *ReferenceData) Regime(year int) string {
	if v, ok := r.Regimes[strconv.Itoa(year)]; ok && v != "" {
		return v
	}
	return "flat"
}

// Tickers returns the tickers with a known CIK, sorted.
func (r *ReferenceData) Tickers() []string {
	out := make([]string, 0, len(r.CIKs))
	for t := range r.CIKs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"       yaml:"level"`    // "debug", "info", "warn", "error"
	Encoding    string `mapstructure:"encoding"    yaml:"encoding"` // "console" or "json"
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.filingret/config.yaml (home directory)
//  3. /etc/filingret/config.yaml (system)
//
// A .env file in the working directory is loaded first, if present.
// Environment variables override config file values.
// Format: FILINGRET_<SECTION>_<KEY>, e.g., FILINGRET_FRED_API_KEY
func Load() (*Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".filingret"))
	v.AddConfigPath("/etc/filingret")

	bindEnv(v)

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	cfg.Reference.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs into the process environment. Variables
// already set win; a missing file is not an error.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// SEC defaults
	v.SetDefault("sec.user_agent", "filingret research contact@example.com")
	v.SetDefault("sec.data_url", "https://data.sec.gov")
	v.SetDefault("sec.www_url", "https://www.sec.gov")
	v.SetDefault("sec.request_delay_ms", 120)

	// Price defaults
	v.SetDefault("prices.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("prices.request_delay_ms", 150)
	v.SetDefault("prices.pad_days", 7)
	v.SetDefault("prices.concurrency", 1)

	// FRED defaults
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")

	// Collection defaults
	v.SetDefault("collection.since", "2022-01-01")
	v.SetDefault("collection.filing_types", []string{"10-Q", "10-K"})
	v.SetDefault("collection.horizons", []int{7, 30})
	v.SetDefault("collection.extractors", []string{"xbrl", "volume", "market"})
	v.SetDefault("collection.market_index", "SPY")

	// Evaluation defaults
	v.SetDefault("evaluation.horizon", 7)
	v.SetDefault("evaluation.predictor", "surprise")
	v.SetDefault("evaluation.confidence_buckets", 5)

	// Quality defaults
	v.SetDefault("quality.high_outlier_pct", 50.0)
	v.SetDefault("quality.extreme_outlier_pct", 100.0)
	v.SetDefault("quality.max_zero_share_pct", 5.0)
	v.SetDefault("quality.max_wipeout_share_pct", 1.0)
	v.SetDefault("quality.max_duplicate_share_pct", 1.0)

	// Model defaults
	v.SetDefault("model.path", "model.json")
	v.SetDefault("model.learning_rate", 0.1)
	v.SetDefault("model.iterations", 2000)
	v.SetDefault("model.l2", 0.01)
	v.SetDefault("model.train_fraction", 0.8)

	// Reference data defaults
	v.SetDefault("reference.ciks", defaultCIKs)
	v.SetDefault("reference.market_caps", defaultMarketCaps)
	v.SetDefault("reference.regimes", map[string]string{"2022": "bear", "2023": "bull", "2024": "flat", "2025": "bull"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
}

var defaultCIKs = map[string]string{
	"AAPL": "0000320193", "MSFT": "0000789019", "GOOGL": "0001652044", "AMZN": "0001018724",
	"NVDA": "0001045810", "META": "0001326801", "TSLA": "0001318605", "AVGO": "0001730168",
	"JPM": "0000019617", "V": "0001403161", "WMT": "0000104169", "MA": "0001141391",
	"COST": "0000909832", "HD": "0000354950", "PG": "0000080424", "NFLX": "0001065280",
	"DIS": "0001744489", "PYPL": "0001633917", "INTC": "0000050863", "AMD": "0000002488",
}

var defaultMarketCaps = map[string]float64{
	"AAPL": 3800, "MSFT": 3400, "GOOGL": 2100, "AMZN": 1900,
	"NVDA": 3200, "META": 1400, "TSLA": 1100, "AVGO": 900,
	"JPM": 600, "V": 550, "WMT": 500, "MA": 470,
	"COST": 380, "HD": 360, "PG": 390, "NFLX": 320,
	"DIS": 210, "PYPL": 80, "INTC": 190, "AMD": 280,
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_FRED_API_KEY"); key != "" {
		cfg.FRED.APIKey = key
	} else if key := os.Getenv("FRED_API_KEY"); key != "" && cfg.FRED.APIKey == "" {
		cfg.FRED.APIKey = key
	}
	if ua := os.Getenv(EnvPrefix + "_SEC_USER_AGENT"); ua != "" {
		cfg.SEC.UserAgent = ua
	}
}

// normalize upper-cases ticker keys; viper lower-cases every map key it reads.
func (r *ReferenceData) normalize() {
	ciks := make(map[string]string, len(r.CIKs))
	for k, v := range r.CIKs {
		ciks[strings.ToUpper(k)] = padCIK(v)
	}
	r.CIKs = ciks

	caps := make(map[string]float64, len(r.MarketCaps))
	for k, v := range r.MarketCaps {
		caps[strings.ToUpper(k)] = v
	}
	r.MarketCaps = caps

	regimes := make(map[string]string, len(r.Regimes))
	for k, v := range r.Regimes {
		regimes[k] = strings.ToLower(v)
	}
	r.Regimes = regimes
}

func padCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// Validate checks values that would make a batch meaningless.
func (c *Config) Validate() error {
	if c.Evaluation.Horizon <= 0 {
		return fmt.Errorf("evaluation.horizon must be positive, got %d", c.Evaluation.Horizon)
	}
	for _, h := range c.Collection.Horizons {
		if h <= 0 {
			return fmt.Errorf("collection.horizons must be positive, got %d", h)
		}
	}
	if c.Model.TrainFraction <= 0 || c.Model.TrainFraction >= 1 {
		return fmt.Errorf("model.train_fraction must be in (0,1), got %v", c.Model.TrainFraction)
	}
	if c.Prices.Concurrency < 1 {
		c.Prices.Concurrency = 1
	}
	if c.Prices.PadDays < 0 {
		return fmt.Errorf("prices.pad_days must not be negative, got %d", c.Prices.PadDays)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
