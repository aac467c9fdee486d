package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chartd daemon.
type Config struct {
	BindAddr       string
	PortCandidates []string

	LogLevel string
	LogFile  string

	// FrameIntervalMS is the paint coalescing window.
	FrameIntervalMS int
	// StrictTime rejects out-of-range calendar components in date strings.
	StrictTime bool

	// JournalDir enables the update journal when non-empty.
	JournalDir        string
	JournalBufferSize int
	JournalMaxSizeMB  int

	// StreamBufferSize is the per-client event buffer for the WebSocket
	// stream.
	StreamBufferSize int
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:          getEnvOrDefault("CHARTD_BIND_ADDR", "127.0.0.1:8288"),
		PortCandidates:    splitList(getEnvOrDefault("CHARTD_PORT_CANDIDATES", "127.0.0.1:8289,127.0.0.1:8290")),
		LogLevel:          strings.ToLower(getEnvOrDefault("CHARTD_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("CHARTD_LOG_FILE", "logs/chartd.log"),
		FrameIntervalMS:   getEnvIntOrDefault("CHARTD_FRAME_INTERVAL_MS", 16),
		StrictTime:        getEnvBoolOrDefault("CHARTD_STRICT_TIME", true),
		JournalDir:        getEnvOrDefault("CHARTD_JOURNAL_DIR", ""),
		JournalBufferSize: getEnvIntOrDefault("CHARTD_JOURNAL_BUFFER_SIZE", 1024),
		JournalMaxSizeMB:  getEnvIntOrDefault("CHARTD_JOURNAL_MAX_SIZE_MB", 50),
		StreamBufferSize:  getEnvIntOrDefault("CHARTD_STREAM_BUFFER_SIZE", 256),
	}
	if cfg.FrameIntervalMS < 1 {
		cfg.FrameIntervalMS = 1
	}
	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
