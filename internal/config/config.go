// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	// Bedrock model backend. An empty token selects the deterministic
	// offline fallback.
	BedrockToken  string
	BedrockRegion string
	BedrockModel  string

	// SQLite database path.
	DBPath string

	// Kafka event publishing; empty brokers disable it.
	KafkaBrokers []string
	KafkaTopic   string

	// Whisper-compatible transcription service; empty URL means transcripts
	// are passed in as text.
	WhisperURL     string
	WhisperTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		BedrockToken:   os.Getenv("AWS_BEARER_TOKEN_BEDROCK"),
		BedrockRegion:  envOrDefault("AWS_REGION", "us-east-1"),
		BedrockModel:   envOrDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0"),
		DBPath:         envOrDefault("CALL_ANALYSIS_DB", "out/calls.db"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     envOrDefault("KAFKA_TOPIC", "call-analysis-events"),
		WhisperURL:     os.Getenv("WHISPER_URL"),
		WhisperTimeout: envDuration("WHISPER_TIMEOUT", 120*time.Second),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "console"),
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
