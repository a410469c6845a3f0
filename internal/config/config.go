package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config propply-compliance (HTTP API) configuration
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    RedisConfig
	Log      struct {
		Level  string
		Format string
	}
	Socrata  SocrataConfig `yaml:"socrata"`
	Carto    CartoConfig   `yaml:"carto"`
	Sync     SyncConfig    `yaml:"sync"`
	Identity IdentityConfig
	Cache    CacheConfig
	Events   EventsConfig
}

// DatabaseConfig Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SocrataConfig NYC open data (SODA API) settings
type SocrataConfig struct {
	BaseURL  string `yaml:"base_url"`  // e.g. "https://data.cityofnewyork.us"
	AppToken string `yaml:"app_token"` // optional, raises rate limits
	PageSize int    `yaml:"page_size"` // rows per page ($limit)
	PageCap  int    `yaml:"page_cap"`  // max pages per dataset per run
}

// CartoConfig Philadelphia open data (Carto SQL API) settings
type CartoConfig struct {
	BaseURL  string `yaml:"base_url"` // e.g. "https://phl.carto.com"
	PageSize int    `yaml:"page_size"`
	PageCap  int    `yaml:"page_cap"`
}

// SyncConfig sync orchestration and outbound HTTP behavior
type SyncConfig struct {
	AdapterTimeout time.Duration `yaml:"adapter_timeout"` // budget per dataset per run
	RetryCount     int           `yaml:"retry_count"`
	RetryWait      time.Duration `yaml:"retry_wait"`
	RetryMaxWait   time.Duration `yaml:"retry_max_wait"`
}

// IdentityConfig identity resolution settings
type IdentityConfig struct {
	// ContaminationThreshold is the largest weak-match batch accepted without a
	// strong identifier. Larger batches are rejected whole.
	ContaminationThreshold int
}

// CacheConfig score snapshot cache settings
type CacheConfig struct {
	TTL time.Duration
}

// EventsConfig score-change event publishing settings
type EventsConfig struct {
	Enabled bool
	Stream  string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "propply")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// NYC Socrata configuration
	cfg.Socrata.BaseURL = getEnv("SOCRATA_BASE_URL", "https://data.cityofnewyork.us")
	cfg.Socrata.AppToken = getEnv("SOCRATA_APP_TOKEN", "")
	cfg.Socrata.PageSize = parseInt(getEnv("SOCRATA_PAGE_SIZE", "1000"), 1000)
	cfg.Socrata.PageCap = parseInt(getEnv("SOCRATA_PAGE_CAP", "10"), 10)

	// Philadelphia Carto configuration
	cfg.Carto.BaseURL = getEnv("CARTO_BASE_URL", "https://phl.carto.com")
	cfg.Carto.PageSize = parseInt(getEnv("CARTO_PAGE_SIZE", "1000"), 1000)
	cfg.Carto.PageCap = parseInt(getEnv("CARTO_PAGE_CAP", "10"), 10)

	cfg.Sync.AdapterTimeout = parseDuration(getEnv("SYNC_ADAPTER_TIMEOUT", "120s"), 120*time.Second)
	cfg.Sync.RetryCount = parseInt(getEnv("SOURCE_RETRY_COUNT", "3"), 3)
	cfg.Sync.RetryWait = parseDuration(getEnv("SOURCE_RETRY_WAIT", "1s"), 1*time.Second)
	cfg.Sync.RetryMaxWait = parseDuration(getEnv("SOURCE_RETRY_MAX_WAIT", "5s"), 5*time.Second)

	cfg.Identity.ContaminationThreshold = parseInt(getEnv("IDENTITY_CONTAMINATION_THRESHOLD", "10"), 10)

	cfg.Cache.TTL = parseDuration(getEnv("SCORE_CACHE_TTL", "300s"), 300*time.Second)

	cfg.Events.Enabled = getEnv("EVENTS_ENABLED", "true") == "true"
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "compliance:score-events")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
