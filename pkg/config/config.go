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
	Env  string
	Port int

	API      APIConfig
	Boundary BoundaryConfig
	Backoff  BackoffConfig
	Identity IdentityConfig
	Location LocationConfig
	Ledger   LedgerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Export   ExportConfig
	CORS     CORSConfig
	Log      LogConfig
}

// APIConfig points the core at the event board backend.
type APIConfig struct {
	BaseURL      string
	StreamPath   string
	Timeout      time.Duration
	FetchRadiusM int
}

// BoundaryConfig is the fixed campus geofence.
type BoundaryConfig struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// BackoffConfig drives the reconnect schedule of the push channel.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// IdentityConfig names the local identity used for verify calls and ledger keys.
type IdentityConfig struct {
	Name  string
	Email string
}

// LocationConfig configures position acquisition for the submission gate.
type LocationConfig struct {
	Lat     float64
	Lng     float64
	Timeout time.Duration
}

// LedgerConfig selects the durable vote ledger backend.
type LedgerConfig struct {
	Backend string // memory, file, redis, postgres
	Dir     string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
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

// ExportConfig governs periodic snapshot dumps from the watcher.
type ExportConfig struct {
	Enabled  bool
	Dir      string
	Interval time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.API = APIConfig{
		BaseURL:      strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		StreamPath:   v.GetString("API_STREAM_PATH"),
		Timeout:      parseDuration(v.GetString("API_TIMEOUT"), 10*time.Second),
		FetchRadiusM: v.GetInt("API_FETCH_RADIUS_M"),
	}

	cfg.Boundary = BoundaryConfig{
		Lat:      v.GetFloat64("BOUNDARY_LAT"),
		Lng:      v.GetFloat64("BOUNDARY_LNG"),
		RadiusKm: v.GetFloat64("BOUNDARY_RADIUS_KM"),
	}

	cfg.Backoff = BackoffConfig{
		BaseDelay: parseDuration(v.GetString("BACKOFF_BASE_DELAY"), 2*time.Second),
		MaxDelay:  parseDuration(v.GetString("BACKOFF_MAX_DELAY"), 30*time.Second),
	}

	cfg.Identity = IdentityConfig{
		Name:  v.GetString("IDENTITY_NAME"),
		Email: v.GetString("IDENTITY_EMAIL"),
	}

	cfg.Location = LocationConfig{
		Lat:     v.GetFloat64("LOCATION_LAT"),
		Lng:     v.GetFloat64("LOCATION_LNG"),
		Timeout: parseDuration(v.GetString("LOCATION_TIMEOUT"), 10*time.Second),
	}

	cfg.Ledger = LedgerConfig{
		Backend: v.GetString("LEDGER_BACKEND"),
		Dir:     v.GetString("LEDGER_DIR"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

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

	cfg.Export = ExportConfig{
		Enabled:  v.GetBool("EXPORT_ENABLED"),
		Dir:      v.GetString("EXPORT_DIR"),
		Interval: parseDuration(v.GetString("EXPORT_INTERVAL"), time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8090)

	v.SetDefault("API_BASE_URL", "http://localhost:8081")
	v.SetDefault("API_STREAM_PATH", "/ws")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("API_FETCH_RADIUS_M", 5000)

	// York U Keele campus center plus immediate surroundings.
	v.SetDefault("BOUNDARY_LAT", 43.7735)
	v.SetDefault("BOUNDARY_LNG", -79.5019)
	v.SetDefault("BOUNDARY_RADIUS_KM", 2.5)

	v.SetDefault("BACKOFF_BASE_DELAY", "2s")
	v.SetDefault("BACKOFF_MAX_DELAY", "30s")

	v.SetDefault("IDENTITY_NAME", "Student")
	v.SetDefault("IDENTITY_EMAIL", "")

	v.SetDefault("LOCATION_LAT", 0)
	v.SetDefault("LOCATION_LNG", 0)
	v.SetDefault("LOCATION_TIMEOUT", "10s")

	v.SetDefault("LEDGER_BACKEND", "file")
	v.SetDefault("LEDGER_DIR", "./data")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "unispot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("EXPORT_ENABLED", false)
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_INTERVAL", "1h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
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
