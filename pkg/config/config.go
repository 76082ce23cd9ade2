package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Cache      CacheConfig
	Reset      ResetConfig
	Setup      SetupConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// AutoMigrate applies the scripts in MigrationsDir at API start.
	AutoMigrate   bool
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig describes the tracked cohort and the QR/aggregation policy.
type AttendanceConfig struct {
	Cohort                string
	Timezone              string
	QRTTL                 time.Duration
	TrendWindow           int
	RankingWindow         int
	DefaultImportPassword string
}

// CacheConfig governs caching of trend and ranking payloads.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ResetConfig controls the scheduled daily ledger wipe and the snapshot taken before it.
type ResetConfig struct {
	Enabled bool
	Cron    string
	Retries int

	SnapshotEnabled   bool
	SnapshotDir       string
	SnapshotRetention time.Duration
}

// SetupConfig holds the bootstrap teacher account created by POST /setup.
type SetupConfig struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Attendance = AttendanceConfig{
		Cohort:                v.GetString("COHORT"),
		Timezone:              v.GetString("COHORT_TIMEZONE"),
		QRTTL:                 parseDuration(v.GetString("QR_TTL"), 15*time.Minute),
		TrendWindow:           positiveOr(v.GetInt("TREND_WINDOW"), 7),
		RankingWindow:         positiveOr(v.GetInt("RANKING_WINDOW"), 30),
		DefaultImportPassword: v.GetString("DEFAULT_IMPORT_PASSWORD"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.Reset = ResetConfig{
		Enabled: v.GetBool("RESET_ENABLED"),
		Cron:    v.GetString("RESET_CRON"),
		Retries: positiveOr(v.GetInt("RESET_RETRIES"), 3),

		SnapshotEnabled:   v.GetBool("SNAPSHOT_ENABLED"),
		SnapshotDir:       v.GetString("SNAPSHOT_DIR"),
		SnapshotRetention: parseDuration(v.GetString("SNAPSHOT_RETENTION"), 30*24*time.Hour),
	}

	cfg.Setup = SetupConfig{
		AdminName:     v.GetString("SETUP_ADMIN_NAME"),
		AdminEmail:    v.GetString("SETUP_ADMIN_EMAIL"),
		AdminPassword: v.GetString("SETUP_ADMIN_PASSWORD"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "absensi_xi2")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_MIGRATIONS_DIR", "migrations")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "qr-attendance-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COHORT", "XI-2")
	v.SetDefault("COHORT_TIMEZONE", "Asia/Makassar")
	v.SetDefault("QR_TTL", "15m")
	v.SetDefault("TREND_WINDOW", 7)
	v.SetDefault("RANKING_WINDOW", 30)
	v.SetDefault("DEFAULT_IMPORT_PASSWORD", "password123")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("RESET_ENABLED", false)
	v.SetDefault("RESET_CRON", "0 6 * * *")
	v.SetDefault("RESET_RETRIES", 3)
	v.SetDefault("SNAPSHOT_ENABLED", true)
	v.SetDefault("SNAPSHOT_DIR", "./snapshots")
	v.SetDefault("SNAPSHOT_RETENTION", "720h")

	v.SetDefault("SETUP_ADMIN_NAME", "Administrator XI2")
	v.SetDefault("SETUP_ADMIN_EMAIL", "admin@xi2.sch.id")
	v.SetDefault("SETUP_ADMIN_PASSWORD", "admin123")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
