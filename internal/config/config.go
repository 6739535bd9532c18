package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string // ABSENKU_DATABASE_URL (required)
	GRPCAddr    string // ABSENKU_GRPC_ADDR (default ":9090")
	HTTPAddr    string // ABSENKU_HTTP_ADDR (default ":8080")
	NATSURL     string // ABSENKU_NATS_URL (optional, empty = no events, no NATS ingest)
	AuthToken   string // ABSENKU_AUTH_TOKEN (optional, empty = auth disabled)

	// Validation settings
	Location          *time.Location // ABSENKU_TIMEZONE (default "Asia/Jakarta")
	MinDuration       time.Duration  // ABSENKU_MIN_DURATION (default 15m)
	MaxSilence        time.Duration  // ABSENKU_MAX_SILENCE (default 60s)
	SweepInterval     time.Duration  // ABSENKU_SWEEP_INTERVAL (default 5s)
	SweepConcurrency  int            // ABSENKU_SWEEP_CONCURRENCY (default 16)
	IngestConcurrency int            // ABSENKU_INGEST_CONCURRENCY (default 64)
	MaxAccuracy       float64        // ABSENKU_MAX_ACCURACY_M (default 200)
	LatenessPolicy    string         // ABSENKU_LATENESS_POLICY ("keep" or "recompute", default "keep")

	// Sync settings
	SyncInterval   time.Duration // ABSENKU_SYNC_INTERVAL (default 10m; 0 = disabled)
	SyncS3Bucket   string        // ABSENKU_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // ABSENKU_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // ABSENKU_SYNC_S3_REGION (default "ap-southeast-3")
	SyncS3Key      string        // ABSENKU_SYNC_S3_KEY (default "absenku/attendance.jsonl")
	SyncGitRepo    string        // ABSENKU_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // ABSENKU_SYNC_GIT_FILE (default "attendance.jsonl")
	SyncGitBranch  string        // ABSENKU_SYNC_GIT_BRANCH (default "main")
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the real environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("ABSENKU_DATABASE_URL"),
		GRPCAddr:       envOrDefault("ABSENKU_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("ABSENKU_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("ABSENKU_NATS_URL"),
		AuthToken:      os.Getenv("ABSENKU_AUTH_TOKEN"),
		LatenessPolicy: envOrDefault("ABSENKU_LATENESS_POLICY", "keep"),
		SyncS3Bucket:   os.Getenv("ABSENKU_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("ABSENKU_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("ABSENKU_SYNC_S3_REGION", "ap-southeast-3"),
		SyncS3Key:      envOrDefault("ABSENKU_SYNC_S3_KEY", "absenku/attendance.jsonl"),
		SyncGitRepo:    os.Getenv("ABSENKU_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("ABSENKU_SYNC_GIT_FILE", "attendance.jsonl"),
		SyncGitBranch:  envOrDefault("ABSENKU_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("ABSENKU_DATABASE_URL is required")
	}

	tz := envOrDefault("ABSENKU_TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("ABSENKU_TIMEZONE: %w", err)
	}
	c.Location = loc

	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
		positive bool
	}{
		{"ABSENKU_MIN_DURATION", "15m", &c.MinDuration, true},
		{"ABSENKU_MAX_SILENCE", "60s", &c.MaxSilence, true},
		{"ABSENKU_SWEEP_INTERVAL", "5s", &c.SweepInterval, true},
		{"ABSENKU_SYNC_INTERVAL", "10m", &c.SyncInterval, false},
	} {
		v, err := time.ParseDuration(envOrDefault(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 || (d.positive && v == 0) {
			return nil, fmt.Errorf("%s: must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}

	for _, i := range []struct {
		key      string
		fallback string
		dst      *int
	}{
		{"ABSENKU_SWEEP_CONCURRENCY", "16", &c.SweepConcurrency},
		{"ABSENKU_INGEST_CONCURRENCY", "64", &c.IngestConcurrency},
	} {
		n, err := strconv.Atoi(envOrDefault(i.key, i.fallback))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: must be a positive integer", i.key)
		}
		*i.dst = n
	}

	acc, err := strconv.ParseFloat(envOrDefault("ABSENKU_MAX_ACCURACY_M", "200"), 64)
	if err != nil || acc <= 0 {
		return nil, fmt.Errorf("ABSENKU_MAX_ACCURACY_M: must be a positive number")
	}
	c.MaxAccuracy = acc

	switch c.LatenessPolicy {
	case "keep", "recompute":
	default:
		return nil, fmt.Errorf("ABSENKU_LATENESS_POLICY: unknown policy %q", c.LatenessPolicy)
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
