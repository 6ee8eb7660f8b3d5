package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// RedisAddr enables the run lock when set. Empty disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SourceSchema is the schema holding the per-app/per-region source
	// order tables the verifier replays. Empty means same schema as the
	// fact table (used by the sqlite test harness).
	SourceSchema string

	VoidChunkSize       int
	CorrectionChunkSize int

	VerifyFrom time.Time
	VerifyTo   time.Time

	RunDedup       bool
	RunSequence    bool
	RunPlanEnrich  bool
	RunKeywordPass bool
	RunVerifier    bool

	JobTimeout time.Duration
	LockTTL    time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "orderfacts"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		DBType:            getenv("DATABASE_TYPE", "mysql"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "3306"),
		DBName:            getenv("DATABASE_NAME", "bi_data"),
		DBUser:            getenv("DATABASE_USER", "root"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 4),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 16),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		SourceSchema: getenv("SOURCE_SCHEMA", "osaio"),

		VoidChunkSize:       getenvInt("VOID_CHUNK_SIZE", 2000),
		CorrectionChunkSize: getenvInt("CORRECTION_CHUNK_SIZE", 5000),

		VerifyFrom: getenvTime("VERIFY_FROM", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		VerifyTo:   getenvTime("VERIFY_TO", time.Date(2024, 2, 10, 23, 59, 59, 0, time.UTC)),

		RunDedup:       getenvBool("RUN_DEDUP", true),
		RunSequence:    getenvBool("RUN_SEQUENCE", true),
		RunPlanEnrich:  getenvBool("RUN_PLAN_ENRICH", false),
		RunKeywordPass: getenvBool("RUN_KEYWORD_PASS", false),
		RunVerifier:    getenvBool("RUN_VERIFIER", false),

		JobTimeout: getenvDuration("JOB_TIMEOUT", 30*time.Minute),
		LockTTL:    getenvDuration("RUN_LOCK_TTL", time.Hour),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvTime(key string, def time.Time) time.Time {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return def
}
