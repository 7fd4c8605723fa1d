package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	URL      string `yaml:"url"`
}

// DSN prefers an explicit URL (DATABASE_URL style) over discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	ReportCacheTTL time.Duration `yaml:"report_cache_ttl"`
}

type IngestConfig struct {
	Bucket       string        `yaml:"bucket"`
	Region       string        `yaml:"region"`
	AWSProfile   string        `yaml:"aws_profile"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"`
	ChunkSize    int           `yaml:"chunk_size"`
	MaxRowErrors int           `yaml:"max_row_errors"`
}

// AnalyticsConfig holds the threshold knobs for anomaly detection and the
// recommendation ranker. All ratios are fractions, not percentages.
type AnalyticsConfig struct {
	AnomalyDropRatio      float64 `yaml:"anomaly_drop_ratio"`
	AnomalySpikeRatio     float64 `yaml:"anomaly_spike_ratio"`
	MinAnomalyHistoryDays int     `yaml:"min_anomaly_history_days"`

	FraudRateThreshold      float64 `yaml:"fraud_rate_threshold"`
	ViewabilityThreshold    float64 `yaml:"viewability_threshold"`
	WasteBlockThreshold     float64 `yaml:"waste_block_threshold"`
	WinRateInvestigateRatio float64 `yaml:"win_rate_investigate_ratio"`

	MinBidRequests    int64   `yaml:"min_bid_requests"`
	MinImpressions    int64   `yaml:"min_impressions"`
	MinReachedQueries int64   `yaml:"min_reached_queries"`
	SizeGapMultiple   float64 `yaml:"size_gap_multiple"`
	MinSizeGapQueries int64   `yaml:"min_size_gap_queries"`

	MaxRecommendations int `yaml:"max_recommendations"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "adx_intelligence",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			ReportCacheTTL: 5 * time.Minute,
		},
		Ingest: IngestConfig{
			Region:       "us-east-1",
			PollInterval: 5 * time.Minute,
			Workers:      4,
			ChunkSize:    1000,
			MaxRowErrors: 50,
		},
		Analytics: AnalyticsConfig{
			AnomalyDropRatio:        0.5,
			AnomalySpikeRatio:       2.0,
			MinAnomalyHistoryDays:   3,
			FraudRateThreshold:      0.05,
			ViewabilityThreshold:    0.5,
			WasteBlockThreshold:     0.9,
			WinRateInvestigateRatio: 0.7,
			MinBidRequests:          10000,
			MinImpressions:          1000,
			MinReachedQueries:       10000,
			SizeGapMultiple:         2.0,
			MinSizeGapQueries:       50000,
			MaxRecommendations:      20,
		},
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromEnv builds a config from defaults plus environment variables,
// loading a .env file first when one is present.
func LoadFromEnv() *Config {
	godotenv.Load()
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ADX_BUCKET"); v != "" {
		c.Ingest.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Ingest.Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		c.Ingest.AWSProfile = v
	}
	if v := os.Getenv("INGEST_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Ingest.PollInterval = d
		}
	}
}
