package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by GENESIS_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("GENESIS_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// QuestionProvider returns the configured text-generation provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, mock
func QuestionProvider() string {
	p := os.Getenv("QUESTION_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// QuestionAPIKey returns the API key for the configured question provider.
func QuestionAPIKey() string {
	switch QuestionProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// QuestionTimeout bounds a single text-generation call before the probe
// generator falls back to the strategy template. Defaults to 8s.
func QuestionTimeout() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("QUESTION_TIMEOUT_SECONDS"))
	if err != nil || secs <= 0 {
		return 8 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// MaxProbesPerSession returns the session probe budget. Defaults to 10.
func MaxProbesPerSession() int {
	n, err := strconv.Atoi(os.Getenv("MAX_PROBES_PER_SESSION"))
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// MaxProbesPerField returns the per-hypothesis probe budget. Defaults to 3.
func MaxProbesPerField() int {
	n, err := strconv.Atoi(os.Getenv("MAX_PROBES_PER_FIELD"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// SessionCacheSize returns the bound of the in-process session cache.
// Defaults to 1024.
func SessionCacheSize() int {
	n, err := strconv.Atoi(os.Getenv("SESSION_CACHE_SIZE"))
	if err != nil || n <= 0 {
		return 1024
	}
	return n
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}
