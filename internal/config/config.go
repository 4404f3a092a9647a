package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	StreamsDir         string
	FFmpegPath         string
	PublicBaseURL      string
	CORSOrigins        []string
	ClerkSecretKey     string
	MetricsUser        string
	MetricsPass        string
	RateLimitRPS       float64
	RateLimitBurst     int
	StreamReapInterval time.Duration
	PollInterval       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return &Config{
		Port:          getEnv("PORT", "5000"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		StreamsDir:    getEnv("STREAMS_DIR", "./streams"),
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5000"), "/"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:3001",
			"http://127.0.0.1:3001",
		}),
		ClerkSecretKey:     getEnv("CLERK_SECRET_KEY", ""),
		MetricsUser:        getEnv("METRICS_USER", ""),
		MetricsPass:        getEnv("METRICS_PASS", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),
		StreamReapInterval: getEnvAsDuration("STREAM_REAP_INTERVAL", time.Minute),
		PollInterval:       getEnvAsDuration("OVERLAY_POLL_INTERVAL", 3*time.Second),
	}
}

// AuthEnabled reports whether mutating routes must carry a Clerk session token.
func (c *Config) AuthEnabled() bool {
	return c.ClerkSecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}

	var values []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
