package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	MarketData struct {
		Provider string `yaml:"provider"` // binance or coingecko
		Binance  struct {
			BaseURL       string        `yaml:"base_url"`
			Symbol        string        `yaml:"symbol"`
			Interval      string        `yaml:"interval"`
			KlineLimit    int           `yaml:"kline_limit"`
			TickerTTL     time.Duration `yaml:"ticker_ttl"`
			KlinesTTL     time.Duration `yaml:"klines_ttl"`
			RatePerSecond float64       `yaml:"rate_per_second"`
		} `yaml:"binance"`
		CoinGecko struct {
			BaseURL       string        `yaml:"base_url"`
			APIKey        string        `yaml:"api_key"`
			CoinID        string        `yaml:"coin_id"`
			HistoryDays   int           `yaml:"history_days"`
			CacheTTL      time.Duration `yaml:"cache_ttl"`
			RatePerSecond float64       `yaml:"rate_per_second"`
		} `yaml:"coingecko"`
	} `yaml:"market_data"`
	Strategy struct {
		Type     string `yaml:"type"` // simple-ma, deepseek, qwen-vertex, gpt-oss-vertex
		DeepSeek struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
			Model   string `yaml:"model"`
		} `yaml:"deepseek"`
		Vertex struct {
			ProjectID string `yaml:"project_id"`
			Location  string `yaml:"location"`
			Domain    string `yaml:"domain"`
		} `yaml:"vertex"`
	} `yaml:"strategy"`
	Ledger struct {
		Endpoint      string        `yaml:"endpoint"`
		ApplicationID string        `yaml:"application_id"`
		ChainID       string        `yaml:"chain_id"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"ledger"`
	Orchestrator struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"orchestrator"`
	Cache struct {
		Backend string `yaml:"backend"` // memory or redis
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Database struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"database"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. A .env file in the working directory is honored first.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("STRATEGY"); v != "" {
		c.Strategy.Type = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		c.Strategy.DeepSeek.APIKey = v
	}
	if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
		c.Strategy.DeepSeek.BaseURL = v
	}
	if v := os.Getenv("GCP_PROJECT_ID"); v != "" {
		c.Strategy.Vertex.ProjectID = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.MarketData.CoinGecko.APIKey = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		c.MarketData.Binance.BaseURL = v
	}
	if v := os.Getenv("LEDGER_ENDPOINT"); v != "" {
		c.Ledger.Endpoint = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Enabled = true
		c.Database.URL = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.MarketData.Provider == "" {
		c.MarketData.Provider = "binance"
	}
	if c.MarketData.Binance.BaseURL == "" {
		c.MarketData.Binance.BaseURL = "https://api.binance.com"
	}
	if c.MarketData.Binance.Symbol == "" {
		c.MarketData.Binance.Symbol = "ETHUSDT"
	}
	if c.MarketData.Binance.Interval == "" {
		c.MarketData.Binance.Interval = "1h"
	}
	if c.MarketData.Binance.KlineLimit == 0 {
		c.MarketData.Binance.KlineLimit = 200
	}
	if c.MarketData.Binance.TickerTTL == 0 {
		c.MarketData.Binance.TickerTTL = 10 * time.Second
	}
	if c.MarketData.Binance.KlinesTTL == 0 {
		c.MarketData.Binance.KlinesTTL = 5 * time.Minute
	}
	if c.MarketData.CoinGecko.BaseURL == "" {
		c.MarketData.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.MarketData.CoinGecko.CoinID == "" {
		c.MarketData.CoinGecko.CoinID = "ethereum"
	}
	if c.MarketData.CoinGecko.HistoryDays == 0 {
		c.MarketData.CoinGecko.HistoryDays = 7
	}
	if c.MarketData.CoinGecko.CacheTTL == 0 {
		c.MarketData.CoinGecko.CacheTTL = 60 * time.Second
	}
	if c.Strategy.Type == "" {
		c.Strategy.Type = "simple-ma"
	}
	if c.Strategy.DeepSeek.BaseURL == "" {
		c.Strategy.DeepSeek.BaseURL = "https://api.deepseek.com"
	}
	if c.Strategy.DeepSeek.Model == "" {
		c.Strategy.DeepSeek.Model = "deepseek-chat"
	}
	if c.Strategy.Vertex.Location == "" {
		c.Strategy.Vertex.Location = "us-south1"
	}
	if c.Strategy.Vertex.Domain == "" {
		c.Strategy.Vertex.Domain = "us-south1-aiplatform.googleapis.com"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 30 * time.Second
	}
	if c.Orchestrator.Interval == 0 {
		c.Orchestrator.Interval = 60 * time.Second
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
}

// Validate checks if the configuration is valid. Components that need a
// secret fail here rather than at first use.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.MarketData.Provider {
	case "binance", "coingecko":
	default:
		return fmt.Errorf("market_data.provider must be 'binance' or 'coingecko', got '%s'", c.MarketData.Provider)
	}
	switch c.Strategy.Type {
	case "simple-ma":
	case "deepseek":
		if c.Strategy.DeepSeek.APIKey == "" {
			return fmt.Errorf("strategy.deepseek.api_key is required for the deepseek strategy")
		}
	case "qwen-vertex", "gpt-oss-vertex":
		if c.Strategy.Vertex.ProjectID == "" {
			return fmt.Errorf("strategy.vertex.project_id is required for vertex strategies")
		}
	default:
		return fmt.Errorf("unknown strategy.type '%s'", c.Strategy.Type)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis cache backend")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when database.enabled is true")
	}
	return nil
}
