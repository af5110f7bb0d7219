package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded once at process start.
// Nothing reads the environment after Load returns.
type Config struct {
	OpenAIKey      string
	OpenAIEndpoint string
	Model          string

	Database string
	WorkDir  string

	ClientSecretPath string
	TokenPath        string
	ShareWith        string

	PipelinePassword string
	SessionSecret    string
	PointerPath      string

	// MinQuestions is the acceptance threshold for a shortfall: a run that
	// parses fewer questions than this fails instead of warning.
	MinQuestions int

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	Host string
	Port string
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint: getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		Model:          getEnv("MODEL", "gpt-4.1"),

		Database: getEnv("DATABASE_PATH", "./data/quizforge.db"),
		WorkDir:  getEnv("WORK_DIR", os.TempDir()),

		ClientSecretPath: getEnv("CLIENT_SECRET_FILE", "client_secret.json"),
		TokenPath:        getEnv("TOKEN_PATH", "token.json"),
		ShareWith:        os.Getenv("SHARE_WITH"),

		PipelinePassword: getEnv("PIPELINE_PASSWORD", "changeme"),
		SessionSecret:    getEnv("SESSION_SECRET", "dev-secret"),
		PointerPath:      getEnv("ACTIVE_FORM_PATH", "./data/active_form.json"),

		MinQuestions: getEnvInt("MIN_QUESTIONS", 1),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM"),

		Host: getEnv("HOST", ""),
		Port: getEnv("PORT", "8080"),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.PointerPath), 0o755); err != nil {
		log.Fatalf("failed to ensure pointer dir %s: %v", cfg.PointerPath, err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
