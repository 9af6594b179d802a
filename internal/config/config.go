package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed mimetypes.yaml
var mimeTypesYAML []byte

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Cluster  ClusterConfig
	Process  ProcessConfig
	Mime     MimeConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RedisConfig struct {
	Addr     string // host:port, defaults to localhost:6379
	Password string
	DB       int
}

type StorageConfig struct {
	Root         string // Root directory for originals and thumbnails
	ThumbMaxEdge int    // Maximum thumbnail edge in pixels (default 512)
}

type ClusterConfig struct {
	GapHours    float64 // Time gap that splits meetings (default 4)
	DebounceTTL int     // Quiet-window length in seconds (default 5)
	RetryDelay  int     // Delayed-job lead time in seconds (default 3)
	MaxRetries  int     // Reschedules before a forced run (default 2)
	JobTimeout  int     // Reconciliation wall clock budget in seconds (default 60)
}

// Gap returns the meeting boundary gap as a duration.
func (c *ClusterConfig) Gap() time.Duration {
	return time.Duration(c.GapHours * float64(time.Hour))
}

type ProcessConfig struct {
	JobTimeout int // Per-job timeout in seconds (default 120)
	MaxRetries int // Queue retries for transient failures (default 3)
	Workers    int // Concurrency of the default queue (default 10)
}

type MimeConfig struct {
	Types map[string]string `yaml:"types"` // mime -> storage extension
}

// Ext returns the storage extension for a MIME type and whether the type is
// accepted for upload.
func (m *MimeConfig) Ext(mime string) (string, bool) {
	ext, ok := m.Types[mime]
	return ext, ok
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var mime MimeConfig
	if err := yaml.Unmarshal(mimeTypesYAML, &mime); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded mimetypes.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     envDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Root:         os.Getenv("STORAGE_ROOT"),
			ThumbMaxEdge: envInt("THUMB_MAX_EDGE", 512),
		},
		Cluster: ClusterConfig{
			GapHours:    envFloat("MEETING_GAP_HOURS", 4),
			DebounceTTL: envInt("CLUSTER_DEBOUNCE_TTL", 5),
			RetryDelay:  envInt("CLUSTER_RETRY_DELAY", 3),
			MaxRetries:  envInt("CLUSTER_MAX_RETRIES", 2),
			JobTimeout:  envInt("CLUSTER_JOB_TIMEOUT", 60),
		},
		Process: ProcessConfig{
			JobTimeout: envInt("PROCESS_JOB_TIMEOUT", 120),
			MaxRetries: envInt("PROCESS_MAX_RETRIES", 3),
			Workers:    envInt("PROCESS_WORKERS", 10),
		},
		Mime: mime,
	}
}
