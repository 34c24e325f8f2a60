// Package config provides centralized default values for the marketplace core
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database Configuration
	CatalogDSN    string
	LocalStoreDSN string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int

	// Onboarding Configuration
	OnboardingCacheVersion string

	// Idle Logout Configuration
	IdleTimeout      time.Duration
	ActivityThrottle time.Duration

	// Session Configuration
	JWTSecret  string
	SessionTTL time.Duration

	// Remote Call Configuration
	QueryTimeout       time.Duration
	SlowQueryThreshold time.Duration

	// Email Configuration
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	// Site Configuration
	MarketplaceURL string
	MediaPath      string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database Configuration
	CatalogDSN = getEnvString("CATALOG_DSN", "file:catalog.db")
	LocalStoreDSN = getEnvString("LOCAL_STORE_DSN", "file:local_state.db")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	// Onboarding Configuration
	OnboardingCacheVersion = getEnvString("ONBOARDING_CACHE_VERSION", "v2")

	// Idle Logout Configuration
	IdleTimeout = time.Duration(getEnvInt("IDLE_TIMEOUT_MINUTES", 30)) * time.Minute
	ActivityThrottle = getEnvDuration("ACTIVITY_THROTTLE", 1*time.Second)

	// Session Configuration
	JWTSecret = getEnvString("JWT_SECRET", "")
	SessionTTL = time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour

	// Remote Call Configuration
	QueryTimeout = getEnvDuration("QUERY_TIMEOUT", 5*time.Second)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Email Configuration
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "noreply@aimarket.dev")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", "AI Market")

	// Site Configuration
	MarketplaceURL = getEnvString("MARKETPLACE_URL", "https://aimarket.dev")
	MediaPath = getEnvString("MEDIA_PATH", "media")
}
