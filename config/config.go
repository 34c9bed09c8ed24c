package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	Firebase FirebaseConfig
	Mail     MailConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Public   PublicConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
}

type MailConfig struct {
	SendGridKey       string
	FromEmail         string
	FromName          string
	ProgramTemplateID string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CORSConfig struct {
	Origin string
}

// PublicConfig tunes the unauthenticated endpoints.
type PublicConfig struct {
	CacheTTLSeconds int
	RateRPS         float64
	RateBurst       int
}

type JobsConfig struct {
	// ReconcileCron is a cron spec (with seconds field) for the nightly
	// rating-aggregate reconciliation.
	ReconcileCron string
	// AdminEmails is the fallback admin allow-list used when no role
	// document exists for a user.
	AdminEmails []string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		},
		Mail: MailConfig{
			SendGridKey:       getEnv("SENDGRID_KEY", ""),
			FromEmail:         getEnv("MAIL_FROM", ""),
			FromName:          getEnv("MAIL_FROM_NAME", "Walking Football Hub"),
			ProgramTemplateID: getEnv("SENDGRID_TEMPLATE_ID_PROGRAM", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			Origin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		},
		Public: PublicConfig{
			CacheTTLSeconds: getEnvAsInt("PROGRAMS_CACHE_TTL_SECONDS", 30),
			RateRPS:         getEnvAsFloat("PUBLIC_RPS", 20),
			RateBurst:       getEnvAsInt("PUBLIC_BURST", 40),
		},
		Jobs: JobsConfig{
			ReconcileCron: getEnv("RECONCILE_CRON", "0 0 0 * * *"),
			AdminEmails:   splitList(getEnv("ADMIN_EMAILS", "")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Firebase.ProjectID == "" && c.Firebase.CredentialsPath == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_PATH is required")
	}

	// Mail settings are deliberately not required at boot: the email
	// endpoints answer 500 with an explicit detail when they are missing.
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
