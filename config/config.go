package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultDayQueueSize       = 500
	defaultNumDayWorkers      = 4
	defaultMaxOpenConns       = 100
	defaultMaxIdleConns       = 10
	defaultExtractorTimeout   = 10
	defaultMatchTieEpsilon    = 1e-6
	defaultAuditStream        = "attendance:audit"
	defaultRecognitionHistory = 10
	defaultRolloverInterval   = 60
)

type Config struct {
	// database
	DatabaseDriver       string
	DatabaseDSN          string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int

	// http
	Port               string
	CORSAllowedOrigins []string
	JWTSecret          string

	// logging
	LogLevel  string
	LogFormat string

	// redis audit stream, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AuditStream   string

	// external feature extractor, disabled when ExtractorURL is empty
	ExtractorURL            string
	ExtractorTimeoutSeconds int

	// day processing workers
	DayQueueSize            int
	NumDayWorkers           int
	RolloverIntervalSeconds int // how often serve checks whether yesterday needs finalizing

	MatchTieEpsilon    float64
	RecognitionHistory int // attempts considered by recognition stats
	SeedDefaultPolicy  bool
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %t", envVar, valStr, defaultVal)
		return defaultVal
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverSQLite))
	if driver != DriverSQLite && driver != DriverPostgres {
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER '%s' (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	dsn := getEnvOrDefault("DATABASE_DSN", "")
	if dsn == "" {
		if driver == DriverPostgres {
			return Config{}, fmt.Errorf("DATABASE_DSN is required for the %s driver", driver)
		}
		dsn = "attendance.db"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return Config{}, fmt.Errorf("invalid REDIS_DB '%s'", os.Getenv("REDIS_DB"))
	}

	cfg := Config{
		DatabaseDriver:          driver,
		DatabaseDSN:             dsn,
		DatabaseMaxOpenConns:    getEnvIntOrDefault("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		DatabaseMaxIdleConns:    getEnvIntOrDefault("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		Port:                    getEnvOrDefault("PORT", "8080"),
		CORSAllowedOrigins:      splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		JWTSecret:               secret,
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:               getEnvOrDefault("LOG_FORMAT", "json"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		AuditStream:             getEnvOrDefault("AUDIT_STREAM", defaultAuditStream),
		ExtractorURL:            os.Getenv("EXTRACTOR_URL"),
		ExtractorTimeoutSeconds: getEnvIntOrDefault("EXTRACTOR_TIMEOUT_SECONDS", defaultExtractorTimeout),
		DayQueueSize:            getEnvIntOrDefault("DAY_QUEUE_SIZE", defaultDayQueueSize),
		NumDayWorkers:           getEnvIntOrDefault("NUM_DAY_WORKERS", defaultNumDayWorkers),
		RolloverIntervalSeconds: getEnvIntOrDefault("ROLLOVER_INTERVAL_SECONDS", defaultRolloverInterval),
		MatchTieEpsilon:         getEnvFloatOrDefault("MATCH_TIE_EPSILON", defaultMatchTieEpsilon),
		RecognitionHistory:      getEnvIntOrDefault("RECOGNITION_HISTORY", defaultRecognitionHistory),
		SeedDefaultPolicy:       getEnvBoolOrDefault("SEED_DEFAULT_POLICY", true),
	}

	return cfg, nil
}
