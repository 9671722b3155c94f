package configs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// =======================
// ENV LOADER
// =======================

// LoadEnv reads .env when running outside a platform that injects env itself.
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") != "" || os.Getenv("APP_ENV") == "production" {
		log.Info("running on managed platform, using system env")
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system env")
		return
	}
	log.Info(".env file loaded")
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnw("invalid int env, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// plain numbers are seconds
		if n, nerr := strconv.Atoi(v); nerr == nil {
			return time.Duration(n) * time.Second
		}
		log.Warnw("invalid duration env, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// =======================
// TYPED CONFIG
// =======================

type Config struct {
	DatabaseURL     string
	TestDatabaseURL string

	Port        string
	CORSOrigins string
	LogLevel    string
	DBLogLevel  string

	TaskWorkers   int
	TaskQueueSize int
	TaskTimeout   time.Duration

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
}

// Load builds the Config from the environment. DATABASE_URL wins over the
// individual POSTGRES_* parts.
func Load() Config {
	user := GetEnv("POSTGRES_USER", "myuser")
	password := GetEnv("POSTGRES_PASSWORD", "mypassword")
	host := GetEnv("POSTGRES_HOST", "db")
	port := GetEnv("POSTGRES_PORT", "5432")
	sslmode := GetEnv("DB_SSLMODE", "disable")

	dsn := func(name string) string {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=library",
			user, password, host, port, name, sslmode)
	}

	databaseURL := GetEnv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = dsn(GetEnv("POSTGRES_DB", "mydb"))
	}
	testURL := GetEnv("TEST_DATABASE_URL")
	if testURL == "" && GetEnv("TEST_POSTGRES_DB") != "" {
		testURL = dsn(GetEnv("TEST_POSTGRES_DB"))
	}

	return Config{
		DatabaseURL:     databaseURL,
		TestDatabaseURL: testURL,

		Port:        GetEnv("PORT", "5000"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		DBLogLevel:  GetEnv("DB_LOG_LEVEL", "warn"),

		TaskWorkers:   getInt("TASK_WORKERS", 4),
		TaskQueueSize: getInt("TASK_QUEUE_SIZE", 64),
		TaskTimeout:   getDuration("TASK_TIMEOUT", 10*time.Second),

		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 10*time.Minute),
	}
}

// ApplyLogLevel sets the fiber logger level from a name like "debug" or "warn".
func ApplyLogLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		log.SetLevel(log.LevelTrace)
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "warn", "warning":
		log.SetLevel(log.LevelWarn)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.SetLevel(log.LevelInfo)
	}
}

// =======================
// GORM LOGGER CUSTOM
// =======================

type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger(level string) gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      parseGormLevel(level),
	}
}

func parseGormLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info", "debug":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Infof("[GORM] "+msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Warnf("[GORM] "+msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Errorf("[GORM] "+msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	switch {
	case err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound) && l.LogLevel >= gormLogger.Error:
		log.Errorw("sql.error", "file", file, "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		log.Warnw("sql.slow", "file", file, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.LogLevel >= gormLogger.Info:
		log.Debugw("sql.query", "file", file, "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
