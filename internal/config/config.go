package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatasetPath       string
	DBPath            string
	OutputDir         string
	CityDirectoryPath string

	FetchMode        string
	FetchTimeoutMs   int
	FetchMaxAttempts int
	FetchUserAgent   string
	FetchRPS         int

	MirrorEnabled bool
	PostgresDSN   string

	MainStartRow int
	MainEndRow   int
	SizeStartRow int
	SizeEndRow   int

	ValidateMaxDetails int
	LogLevel           string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatasetPath:       getEnv("DATASET_PATH", filepath.Join(cwd, "70cityprice.csv")),
		DBPath:            getEnv("DB_PATH", filepath.Join(cwd, "data", "cityprice.db")),
		OutputDir:         getEnv("OUTPUT_DIR", filepath.Join(cwd, "projects")),
		CityDirectoryPath: getEnv("CITY_DIRECTORY_PATH", ""),

		FetchMode:        getEnv("FETCH_MODE", "http"),
		FetchTimeoutMs:   getEnvInt("FETCH_TIMEOUT_MS", 30000),
		FetchMaxAttempts: getEnvInt("FETCH_MAX_ATTEMPTS", 3),
		FetchUserAgent:   getEnv("FETCH_USER_AGENT", "Mozilla/5.0 (compatible; cityprice/1.0)"),
		FetchRPS:         getEnvInt("FETCH_RPS", 2),

		MirrorEnabled: getEnvBool("MIRROR_ENABLED", true),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),

		MainStartRow: getEnvInt("MAIN_START_ROW", 2),
		MainEndRow:   getEnvInt("MAIN_END_ROW", 37),
		SizeStartRow: getEnvInt("SIZE_START_ROW", 3),
		SizeEndRow:   getEnvInt("SIZE_END_ROW", 38),

		ValidateMaxDetails: getEnvInt("VALIDATE_MAX_DETAILS", 8),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if cfg.MainEndRow <= cfg.MainStartRow || cfg.SizeEndRow <= cfg.SizeStartRow {
		return Config{}, fmt.Errorf("invalid row window: main=[%d,%d) size=[%d,%d)", cfg.MainStartRow, cfg.MainEndRow, cfg.SizeStartRow, cfg.SizeEndRow)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
