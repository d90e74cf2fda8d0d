package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/cms-timetable/internal/models"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	CMS       CMSConfig
	Timetable TimetableConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	JWT       JWTConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Refresh   RefreshConfig
	Exports   ExportsConfig
}

// CMSConfig points at the school CMS and the account used to read it.
type CMSConfig struct {
	BaseURL  string
	Username string
	Password string
	Year     int
	Timeout  time.Duration
	Retries  int
}

// TimetableConfig holds the period table and the school's time zone.
type TimetableConfig struct {
	Location *time.Location
	Periods  models.PeriodTable
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig tunes cached CMS reads.
type CacheConfig struct {
	Enabled      bool
	TimetableTTL time.Duration
	ProfileTTL   time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// AuthConfig is the single operator allowed to call the API.
type AuthConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RefreshConfig schedules background timetable refreshes.
type RefreshConfig struct {
	Enabled bool
	Cron    string
	Workers int
	Retries int
}

// ExportsConfig configures timetable export files.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.CMS = CMSConfig{
		BaseURL:  strings.TrimRight(v.GetString("CMS_BASE_URL"), "/"),
		Username: v.GetString("CMS_USERNAME"),
		Password: v.GetString("CMS_PASSWORD"),
		Year:     v.GetInt("CMS_YEAR"),
		Timeout:  parseDuration(v.GetString("CMS_TIMEOUT"), 10*time.Second),
		Retries:  v.GetInt("CMS_RETRIES"),
	}
	if cfg.CMS.Year <= 0 {
		cfg.CMS.Year = time.Now().Year()
	}

	timetable, err := loadTimetable(v)
	if err != nil {
		return nil, err
	}
	cfg.Timetable = timetable

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		TimetableTTL: parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 15*time.Minute),
		ProfileTTL:   parseDuration(v.GetString("PROFILE_CACHE_TTL"), time.Hour),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		Username:     v.GetString("AUTH_USERNAME"),
		PasswordHash: v.GetString("AUTH_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Refresh = RefreshConfig{
		Enabled: v.GetBool("REFRESH_ENABLED"),
		Cron:    v.GetString("REFRESH_CRON"),
		Workers: v.GetInt("REFRESH_WORKERS"),
		Retries: v.GetInt("REFRESH_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("EXPORTS_ENABLED"),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("CMS_BASE_URL", "https://cms.alevel.com.cn")
	v.SetDefault("CMS_USERNAME", "")
	v.SetDefault("CMS_PASSWORD", "")
	v.SetDefault("CMS_YEAR", 0)
	v.SetDefault("CMS_TIMEOUT", "10s")
	v.SetDefault("CMS_RETRIES", 2)

	v.SetDefault("TIMEZONE", "Asia/Shanghai")
	v.SetDefault("PERIOD_TIMES", "")
	v.SetDefault("PERIOD_TABLE_FILE", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cms_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("TIMETABLE_CACHE_TTL", "15m")
	v.SetDefault("PROFILE_CACHE_TTL", "1h")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("AUTH_USERNAME", "admin")
	v.SetDefault("AUTH_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REFRESH_ENABLED", false)
	v.SetDefault("REFRESH_CRON", "0 6 * * 1-5")
	v.SetDefault("REFRESH_WORKERS", 1)
	v.SetDefault("REFRESH_RETRIES", 3)

	v.SetDefault("EXPORTS_ENABLED", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
}

func loadTimetable(v *viper.Viper) (TimetableConfig, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return TimetableConfig{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	var periods models.PeriodTable
	switch {
	case strings.TrimSpace(v.GetString("PERIOD_TIMES")) != "":
		periods, err = models.ParsePeriodTable(v.GetString("PERIOD_TIMES"))
		if err != nil {
			return TimetableConfig{}, fmt.Errorf("PERIOD_TIMES: %w", err)
		}
	case v.GetString("PERIOD_TABLE_FILE") != "":
		periods, err = LoadPeriodTableFile(v.GetString("PERIOD_TABLE_FILE"))
		if err != nil {
			return TimetableConfig{}, fmt.Errorf("PERIOD_TABLE_FILE: %w", err)
		}
	default:
		periods = models.DefaultPeriodTable.Clone()
	}

	return TimetableConfig{Location: loc, Periods: periods}, nil
}

type periodTableFile struct {
	Periods models.PeriodTable `yaml:"periods"`
}

// LoadPeriodTableFile reads a YAML document of the form
//
//	periods:
//	  - start: "08:00"
//	    end: "08:40"
func LoadPeriodTableFile(path string) (models.PeriodTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePeriodTableYAML(raw)
}

// ParsePeriodTableYAML decodes and validates a period table document.
func ParsePeriodTableYAML(raw []byte) (models.PeriodTable, error) {
	var doc periodTableFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode period table: %w", err)
	}
	if err := doc.Periods.Validate(); err != nil {
		return nil, err
	}
	return doc.Periods, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
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
