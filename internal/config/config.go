package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	UpstreamAPIURL         string
	UpstreamTimeoutSeconds int
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ReportCacheTTLSeconds  int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	PollIntervalSeconds    int
	SafetyBufferRate       float64
	LowStockDays           int
	UrgentDays             int
	ChartLimit             int
	Timezone               string
}

// LoadDotEnv reads KEY=VALUE pairs from the given files (".env" when none are
// given) without overriding variables already set. Missing files are not an
// error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	safetyBuffer, err := strconv.ParseFloat(getEnv("FORECAST_SAFETY_BUFFER", "0.2"), 64)
	if err != nil || safetyBuffer < 0 {
		safetyBuffer = 0.2
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		UpstreamAPIURL:         strings.TrimSpace(os.Getenv("UPSTREAM_API_URL")),
		UpstreamTimeoutSeconds: getPositiveInt("UPSTREAM_TIMEOUT_SECONDS", 10),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		ReportCacheTTLSeconds:  getPositiveInt("REPORT_CACHE_TTL_SECONDS", 30),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		PollIntervalSeconds:    getPositiveInt("POLL_INTERVAL_SECONDS", 300),
		SafetyBufferRate:       safetyBuffer,
		LowStockDays:           getPositiveInt("FORECAST_LOW_STOCK_DAYS", 5),
		UrgentDays:             getPositiveInt("FORECAST_URGENT_DAYS", 3),
		ChartLimit:             getPositiveInt("FORECAST_CHART_LIMIT", 10),
		Timezone:               getEnv("TIMEZONE", "Local"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}
