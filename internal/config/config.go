package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the DRISHTI server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Blob     BlobConfig
	Analysis AnalysisConfig
	Certify  CertifyConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// BlobConfig configures the payload staging area. Backend "memory" keeps
// staged bytes in process; "minio" stages them in an object store bucket.
// Either way the stage is cleared when a request reaches a terminal state.
type BlobConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type AnalysisConfig struct {
	// PolicyFile optionally overrides the compiled-in detection policy
	// (weights, floors, verdict bands, thresholds).
	PolicyFile      string
	DetectorTimeout time.Duration
	SyncBudget      time.Duration
	RequestTTL      time.Duration
	MaxSizes        map[string]int64
}

type CertifyConfig struct {
	// SigningKeySeed is a 32-byte hex seed for the ed25519 certificate
	// signing key. Generated at startup if empty (dev only).
	SigningKeySeed string
	VerifyBaseURL  string
}

var validBlobBackends = map[string]bool{
	"memory": true,
	"minio":  true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DRISHTI_PORT", 8080),
			Env:  envString("DRISHTI_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Blob: BlobConfig{
			Backend:   envString("BLOB_BACKEND", "memory"),
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "drishti-staging"),
			Region:    envString("MINIO_REGION", "us-east-1"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Analysis: AnalysisConfig{
			PolicyFile:      os.Getenv("ANALYSIS_POLICY_FILE"),
			DetectorTimeout: envDurationSecs("DETECTOR_TIMEOUT_SECS", 20*time.Second),
			SyncBudget:      envDuration("ANALYZE_SYNC_BUDGET", 2*time.Second),
			RequestTTL:      envDuration("REQUEST_TTL", 30*time.Minute),
			MaxSizes: map[string]int64{
				"image":    envSizeMB("MAX_IMAGE_MB", 15),
				"video":    envSizeMB("MAX_VIDEO_MB", 200),
				"audio":    envSizeMB("MAX_AUDIO_MB", 50),
				"text":     envSizeMB("MAX_TEXT_MB", 1),
				// whatsapp payloads are images, so they share the image
				// ceiling; raising MAX_IMAGE_MB raises both.
				"whatsapp": envSizeMB("MAX_IMAGE_MB", 15),
			},
		},
		Certify: CertifyConfig{
			SigningKeySeed: os.Getenv("CERT_SIGNING_KEY_SEED"),
			VerifyBaseURL:  envString("CERT_VERIFY_BASE_URL", "https://verify.drishti.ai"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validBlobBackends[c.Blob.Backend] {
		return fmt.Errorf("BLOB_BACKEND must be one of memory, minio; got %q", c.Blob.Backend)
	}
	if c.Blob.Backend == "minio" {
		if c.Blob.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when BLOB_BACKEND is minio")
		}
		if c.Blob.AccessKey == "" || c.Blob.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when BLOB_BACKEND is minio")
		}
	}

	if c.Analysis.SyncBudget > 30*time.Second {
		return fmt.Errorf("ANALYZE_SYNC_BUDGET must be 30s or less, got %s", c.Analysis.SyncBudget)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envSizeMB(key string, defaultMB int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultMB * 1 << 20
	}
	mb, err := strconv.ParseInt(v, 10, 64)
	if err != nil || mb <= 0 {
		return defaultMB * 1 << 20
	}
	return mb * 1 << 20
}
