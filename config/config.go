package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Remote API and push channel.
	APIBase               string  `mapstructure:"API_BASE"`
	SocketURL             string  `mapstructure:"SOCKET_URL"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	MaxRequestsPerSec     float64 `mapstructure:"MAX_REQUESTS_PER_SEC"`

	// Geocoding service (Nominatim compatible).
	GeocoderURL       string `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string `mapstructure:"GEOCODER_USER_AGENT"`

	// Redis configuration. An empty address keeps the session in memory and
	// disables the search cache and reminders.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB       int    `mapstructure:"REDIS_SESSION_DB"`
	RedisCacheDB         int    `mapstructure:"REDIS_CACHE_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`
	SessionNamespace     string `mapstructure:"SESSION_NAMESPACE"`
	// SessionFile holds the session when Redis is not configured. Empty means
	// <user config dir>/flexify/session-<namespace>.json.
	SessionFile string `mapstructure:"SESSION_FILE"`

	// Worker search.
	SearchMaxDistanceKm   float64 `mapstructure:"SEARCH_MAX_DISTANCE_KM"`
	SearchVerifiedOnly    bool    `mapstructure:"SEARCH_VERIFIED_ONLY"`
	SearchCacheTTLSeconds int     `mapstructure:"SEARCH_CACHE_TTL_SECONDS"`

	// Sandbox API.
	SandboxPort           string `mapstructure:"SANDBOX_PORT"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	AccessTokenTTLMinutes int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
}

var AppConfig Config

func setDefaults() {
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("API_BASE", "http://localhost:4000/api/v1")
	viper.SetDefault("SOCKET_URL", "ws://localhost:4000/ws")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 15)
	viper.SetDefault("MAX_REQUESTS_PER_SEC", 10)
	viper.SetDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org")
	viper.SetDefault("GEOCODER_USER_AGENT", "flexify-client/1.0")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 1)
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_REMINDER_QUEUE_DB", 3)
	viper.SetDefault("SESSION_NAMESPACE", "default")
	viper.SetDefault("SESSION_FILE", "")
	viper.SetDefault("SEARCH_MAX_DISTANCE_KM", 10)
	viper.SetDefault("SEARCH_VERIFIED_ONLY", true)
	viper.SetDefault("SEARCH_CACHE_TTL_SECONDS", 300)
	viper.SetDefault("SANDBOX_PORT", "4000")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 15)
}

// FlagKey maps a flag name to its configuration key: "api-base" binds
// API_BASE.
func FlagKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// LoadConfig reads config.yaml (current or ./config directory), the
// environment and, when given, parsed command-line flags. Flags win over the
// environment, which wins over the file.
func LoadConfig(flags *pflag.FlagSet) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := viper.BindPFlag(FlagKey(f.Name), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			log.Fatalf("Failed to bind flags: %v", bindErr)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// RequestTimeout returns the per-request HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.SearchCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}
