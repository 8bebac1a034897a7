// Package config provides centralized configuration for the swap-ingestion
// pipeline, loaded the way the teacher's internal/node.Config is: defaults
// first, then a YAML file overlay, then environment-variable overrides for
// the handful of per-deployment secrets and tunables spec §6 names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/klingon-exchange/swapwatch/internal/classifier"
	"github.com/klingon-exchange/swapwatch/internal/feed"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/queue"
)

// Config is the top-level configuration tree for one monitor process.
type Config struct {
	Feed          FeedConfig          `yaml:"feed"`
	Whale         PipelineConfig      `yaml:"whale"`
	KOL           PipelineConfig      `yaml:"kol"`
	RPC           RPCConfig           `yaml:"rpc"`
	Mongo         MongoConfig         `yaml:"mongo"`
	Redis         RedisConfig         `yaml:"redis"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// FeedConfig configures the subscription manager (§4.1, §6).
type FeedConfig struct {
	WSSURL         string        `yaml:"wss_url"`
	HeliusAPIKey   string        `yaml:"-"` // never serialized; env-only
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// PipelineConfig is the per-watch-list (whale or KOL) tunable set from §6's
// NUM_WORKERS_*/WORKER_CONCURRENCY_*/RATE_LIMIT_MAX_*/TIME_IN_SECONDS_* env
// vars.
type PipelineConfig struct {
	QueueName         string        `yaml:"queue_name"`
	NumWorkers        int           `yaml:"num_workers"`         // default 1
	WorkerConcurrency int           `yaml:"worker_concurrency"`  // default 8
	RateLimitMax      int           `yaml:"rate_limit_max"`      // default 30
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`   // default 5000ms
}

// RPCConfig configures the chain-RPC fallback client (§4.4 step 3, §6).
type RPCConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	StatusTimeout    time.Duration `yaml:"status_timeout"`     // default 10s
	FullTxTimeout    time.Duration `yaml:"full_tx_timeout"`    // default 15s
	MaxRetries       int           `yaml:"max_retries"`        // default 3
	RetryInitialWait time.Duration `yaml:"retry_initial_wait"` // default 1s
}

// MongoConfig configures the document-store persistence adapter (§4.8, §6).
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RedisConfig configures the shared KV: dedup sets, processing locks, and
// the Redis-backed job queue (§4.3, §6).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"` // env-only
	DB       int    `yaml:"db"`
}

// ProvidersConfig configures the two metadata/price providers plus timeouts
// from §4.5/§4.6/§6.
type ProvidersConfig struct {
	MetadataTimeout  time.Duration `yaml:"metadata_timeout"` // default 20s
	PricingTimeout   time.Duration `yaml:"pricing_timeout"`  // default 20s
	NegativeCacheTTL time.Duration `yaml:"negative_cache_ttl"`
	FallbackSOLPrice float64       `yaml:"fallback_sol_price"` // used when the live SOL price is unavailable (§4.6)

	HeliusMetadataURL  string `yaml:"helius_metadata_url"`  // primary provider, §4.5 step 3
	MarketDataURL      string `yaml:"market_data_url"`      // fallback provider, §4.5 step 4
	CoinGeckoURL       string `yaml:"coingecko_url"`        // historical native price, §4.6
	CoinGeckoNativeID  string `yaml:"coingecko_native_id"`  // e.g. "solana"
}

// ClassifierConfig maps MIN_ALERT_CONFIDENCE onto classifier.Config (§6).
type ClassifierConfig struct {
	MinConfidence string `yaml:"min_confidence"` // "", MAX, HIGH, MEDIUM, LOW
}

// LoggingConfig holds logger settings, matching the teacher's node.Config
// shape.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ObservabilityConfig configures the /metrics and /healthz surface (§5's
// "queue depth is monitored").
type ObservabilityConfig struct {
	StatusAddr string `yaml:"status_addr"` // default "127.0.0.1:9090"
}

// ConfigFileName is the default config file name, alongside the data
// directory the way the teacher's node package resolves it.
const ConfigFileName = "swapwatch.yaml"

// DefaultConfig returns the spec §6 defaults for every tunable.
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			ConnectTimeout: 15 * time.Second,
			BaseDelay:      5 * time.Second,
			MaxDelay:       60 * time.Second,
			PingInterval:   30 * time.Second,
		},
		Whale: PipelineConfig{
			QueueName:         "signature-processing",
			NumWorkers:        1,
			WorkerConcurrency: 8,
			RateLimitMax:      30,
			RateLimitWindow:   5000 * time.Millisecond,
		},
		KOL: PipelineConfig{
			QueueName:         "signature-processing-kol",
			NumWorkers:        1,
			WorkerConcurrency: 8,
			RateLimitMax:      30,
			RateLimitWindow:   5000 * time.Millisecond,
		},
		RPC: RPCConfig{
			StatusTimeout:    10 * time.Second,
			FullTxTimeout:    15 * time.Second,
			MaxRetries:       3,
			RetryInitialWait: 1 * time.Second,
		},
		Mongo: MongoConfig{
			Database: "swapwatch",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Providers: ProvidersConfig{
			MetadataTimeout:   20 * time.Second,
			PricingTimeout:    20 * time.Second,
			NegativeCacheTTL:  30 * time.Minute,
			FallbackSOLPrice:  150,
			HeliusMetadataURL: "https://mainnet.helius-rpc.com",
			MarketDataURL:     "https://api.dexscreener.com",
			CoinGeckoURL:      "https://api.coingecko.com/api/v3",
			CoinGeckoNativeID: "solana",
		},
		Logging:       LoggingConfig{Level: "info"},
		Observability: ObservabilityConfig{StatusAddr: "127.0.0.1:9090"},
	}
}

// LoadConfig loads a YAML config from dataDir (creating a default file on
// first run, exactly as the teacher's node.LoadConfig does), loads a
// sibling .env via godotenv for local development, then overlays the
// recognized environment variables from spec §6 onto the struct.
func LoadConfig(dataDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dataDir, ".env"))
	_ = godotenv.Load() // cwd .env, best-effort

	configPath := filepath.Join(expandPath(dataDir), ConfigFileName)

	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverlay(cfg)
	return cfg, nil
}

// applyEnvOverlay maps the spec §6 environment variables onto cfg. Explicit
// field-by-field mapping, matching the corpus's style of readable config
// code over reflection-based env binding.
func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("HELIUS_API_KEY"); v != "" {
		cfg.Feed.HeliusAPIKey = v
	}
	if v := os.Getenv("WSS_URL"); v != "" {
		cfg.Feed.WSSURL = v
	}

	overlayInt(&cfg.Whale.NumWorkers, "NUM_WORKERS_WHALE")
	overlayInt(&cfg.KOL.NumWorkers, "NUM_WORKERS_KOL")
	overlayInt(&cfg.Whale.WorkerConcurrency, "WORKER_CONCURRENCY_WHALE")
	overlayInt(&cfg.KOL.WorkerConcurrency, "WORKER_CONCURRENCY_KOL")
	overlayInt(&cfg.Whale.RateLimitMax, "RATE_LIMIT_MAX_WHALE")
	overlayInt(&cfg.KOL.RateLimitMax, "RATE_LIMIT_MAX_KOL")
	overlayDurationMillis(&cfg.Whale.RateLimitWindow, "TIME_IN_SECONDS_WHALE")
	overlayDurationMillis(&cfg.KOL.RateLimitWindow, "TIME_IN_SECONDS_KOL")

	if v := os.Getenv("MIN_ALERT_CONFIDENCE"); v != "" {
		cfg.Classifier.MinConfidence = v
	}

	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		cfg.RPC.Endpoint = v
	}
}

func overlayInt(dst *int, envVar string) {
	v := os.Getenv(envVar)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// overlayDurationMillis mirrors the source's TIME_IN_SECONDS_* naming,
// which historically carries a millisecond value despite the name (the
// default of 5000 is unmistakably milliseconds, not seconds) — preserved
// as-is rather than "fixed," since changing the unit would silently
// relax the rate limiter for anyone still setting the env var as-documented.
func overlayDurationMillis(dst *time.Duration, envVar string) {
	v := os.Getenv(envVar)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = time.Duration(n) * time.Millisecond
}

// Save writes cfg to path as YAML, matching the teacher's node.Config.Save.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# swapwatch ingestion config\n# generated automatically on first run\n\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// FeedManagerConfig adapts FeedConfig onto feed.Config.
func (c *Config) FeedManagerConfig() feed.Config {
	return feed.Config{
		URL:            c.Feed.WSSURL,
		ConnectTimeout: c.Feed.ConnectTimeout,
		BaseDelay:      c.Feed.BaseDelay,
		MaxDelay:       c.Feed.MaxDelay,
		PingInterval:   c.Feed.PingInterval,
	}
}

// QueueConfig adapts a PipelineConfig onto queue.Config.
func (p PipelineConfig) QueueConfig() queue.Config {
	cfg := queue.DefaultConfig(p.QueueName)
	return cfg
}

// ClassifierClassifierConfig adapts the MIN_ALERT_CONFIDENCE overlay onto
// classifier.Config.
func (c *Config) ClassifierClassifierConfig() classifier.Config {
	return classifier.Config{MinConfidence: confidenceFromString(c.Classifier.MinConfidence)}
}

func confidenceFromString(s string) model.Confidence {
	switch s {
	case "MAX", "HIGH", "MEDIUM", "LOW":
		return model.Confidence(s)
	default:
		return ""
	}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
