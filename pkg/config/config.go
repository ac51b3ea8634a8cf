package config

import (
	"os"
	"strconv"
)

// Config holds process configuration.
type Config struct {
	AgentID        string
	LogLevel       string
	DatabaseURL    string
	RedisAddr      string
	SQLitePath     string
	ProfilesDir    string
	Profile        string
	OTLPEndpoint   string
	TelemetryOn    bool
	HistoryLimit   int
	ViolationLimit int
}

// Load loads configuration from environment variables.
func Load() *Config {
	agentID := os.Getenv("AGENT_ID")
	if agentID == "" {
		agentID = "agent-default"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "governor.db"
	}

	profilesDir := os.Getenv("PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	profile := os.Getenv("AUTONOMY_PROFILE")
	if profile == "" {
		profile = "supervised"
	}

	otlp := os.Getenv("OTLP_ENDPOINT")
	if otlp == "" {
		otlp = "localhost:4317"
	}

	return &Config{
		AgentID:        agentID,
		LogLevel:       logLevel,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		SQLitePath:     sqlitePath,
		ProfilesDir:    profilesDir,
		Profile:        profile,
		OTLPEndpoint:   otlp,
		TelemetryOn:    os.Getenv("TELEMETRY_ENABLED") == "true",
		HistoryLimit:   intEnv("HISTORY_LIMIT", 1000),
		ViolationLimit: intEnv("VIOLATION_LIMIT", 1000),
	}
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
