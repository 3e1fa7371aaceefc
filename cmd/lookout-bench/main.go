// README: Smoke and load runner against a live lookout-api; executes HTTP, DB and Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	runner := NewRunner(cfg)
	results := runner.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", counts[statusPass], counts[statusFail], counts[statusSkip])

	if counts[statusFail] > 0 || (cfg.Strict && counts[statusSkip] > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL        string
	Token          string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	Strict         bool
	Lat, Lng       float64
	Heading        float64
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("LOOKOUT_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.Token, "token", os.Getenv("LOOKOUT_BENCH_TOKEN"), "Bearer token when auth is enabled")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("LOOKOUT_DB_DSN"), "Postgres DSN; empty skips quota checks")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("LOOKOUT_REDIS_ADDR", "localhost:6379"), "Redis address")
	flag.StringVar(&cfg.MigrationPath, "migration", envOrDefault("LOOKOUT_BENCH_MIGRATION", "migrations/0001_ai_usage.sql"), "Migration SQL path")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", envOrDefaultBool("LOOKOUT_BENCH_APPLY_MIGRATION", false), "Apply migration SQL before tests")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("LOOKOUT_BENCH_STRICT", false), "Fail on skipped checks")
	flag.Float64Var(&cfg.Lat, "lat", 51.5007, "Latitude pushed to the session")
	flag.Float64Var(&cfg.Lng, "lng", -0.1246, "Longitude pushed to the session")
	flag.Float64Var(&cfg.Heading, "heading", 0, "Heading pushed to the session")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("LOOKOUT_BENCH_TIMEOUT", 60*time.Second), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("LOOKOUT_BENCH_CONCURRENCY", 20), "Concurrency for load checks")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("LOOKOUT_BENCH_DURATION", 10*time.Second), "Duration for load checks")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
