package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite DatabaseDriver = "sqlite"
	DatabaseDriverMongo  DatabaseDriver = "mongo"
)

type SessionStoreType string

const (
	SessionStoreMemory SessionStoreType = "memory"
	SessionStoreCookie SessionStoreType = "cookie"
)

// Config holds the configuration for the Bookshelf server and its dependencies.
type Config struct {
	// Listen is the address the Bookshelf server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the server, used to build image URLs.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// TokenSecret is the HMAC secret used to sign bearer tokens.
	TokenSecret string `yaml:"token_secret" mapstructure:"token_secret"`
	// SessionKey is the key used to authenticate session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// Token holds the bearer token configuration.
	Token *TokenConfig `yaml:"token" mapstructure:"token"`
	// Session holds the session configuration.
	Session *SessionConfig `yaml:"session" mapstructure:"session"`
	// Password holds the password hashing configuration.
	Password *PasswordConfig `yaml:"password" mapstructure:"password"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Upload holds the cover upload configuration.
	Upload *UploadConfig `yaml:"upload" mapstructure:"upload"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// LoginLimit holds the failed login limiter configuration.
	LoginLimit *LoginLimitConfig `yaml:"login_limit" mapstructure:"login_limit"`
	// Google holds the configuration for verifying Google ID tokens.
	Google *GoogleConfig `yaml:"google" mapstructure:"google"`
	// Metrics holds the prometheus configuration.
	Metrics *MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	// Gravatar holds the configuration for Gravatar profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
	// Email holds the welcome email configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
}

// TokenConfig holds the bearer token configuration.
type TokenConfig struct {
	// TTL is the lifetime of issued tokens. Zero issues tokens without expiry.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// SessionConfig holds the session configuration.
type SessionConfig struct {
	// Store selects where session data lives: "memory" (server side) or "cookie".
	Store SessionStoreType `yaml:"store" mapstructure:"store"`
	// MaxAge is the maximum age of a session in seconds.
	MaxAge int `yaml:"max_age" mapstructure:"max_age"`
	// Secure marks the session cookie as HTTPS only.
	Secure bool `yaml:"secure" mapstructure:"secure"`
}

// PasswordConfig holds the password hashing configuration.
type PasswordConfig struct {
	// Cost is the bcrypt cost factor.
	Cost int `yaml:"cost" mapstructure:"cost"`
	// Workers bounds the number of concurrent hash operations.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Driver selects the credential store backend ("sqlite" or "mongo").
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// URL is the sqlite file path or the mongo connection string.
	URL string `yaml:"url" mapstructure:"url"`
	// Name is the mongo database name.
	Name string `yaml:"name" mapstructure:"name"`
}

// UploadConfig holds the cover upload configuration.
type UploadConfig struct {
	// Dir is the directory uploaded covers are stored in and served from.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// MaxSize is the maximum accepted upload size in bytes.
	MaxSize int64 `yaml:"max_size" mapstructure:"max_size"`
	// MaxWidth is the maximum width of a stored cover.
	MaxWidth int `yaml:"max_width" mapstructure:"max_width"`
	// MaxHeight is the maximum height of a stored cover.
	MaxHeight int `yaml:"max_height" mapstructure:"max_height"`
	// Quality is the JPEG quality used when re-encoding (1-100).
	Quality int `yaml:"quality" mapstructure:"quality"`
	// MaxDiskUsagePercent rejects uploads once the upload volume is fuller than this.
	MaxDiskUsagePercent float64 `yaml:"max_disk_usage_percent" mapstructure:"max_disk_usage_percent"`
	// OrphanGrace is how long an unreferenced cover is kept before the sweep removes it.
	OrphanGrace time.Duration `yaml:"orphan_grace" mapstructure:"orphan_grace"`
	// CleanupSchedule is the cron schedule of the orphan cover sweep.
	CleanupSchedule string `yaml:"cleanup_schedule" mapstructure:"cleanup_schedule"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// LoginLimitConfig holds the failed login limiter configuration.
type LoginLimitConfig struct {
	// Enabled indicates whether failed logins are limited.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// MaxAttempts is the number of failed attempts allowed within Window.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// Window is how long failed attempts are remembered.
	Window time.Duration `yaml:"window" mapstructure:"window"`
}

// GoogleConfig holds the configuration for verifying Google ID tokens.
// Without a client ID the google login endpoint trusts the posted email.
type GoogleConfig struct {
	// ClientID is the OAuth client ID the ID token audience must match.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	// Issuer is the OIDC issuer URL.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
}

// MetricsConfig holds the prometheus configuration.
type MetricsConfig struct {
	// Enabled exposes /metrics.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar support is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	// Valid values: "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether welcome emails are sent.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which notifications are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which notifications are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS indicates whether to use STARTTLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use implicit TLS for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// A missing config file is fine as long as the required values come from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind env vars that don't follow the BOOKSHELF_ naming
	bindLegacyEnv(v)

	// Set default values
	setDefaults(v)

	// Configure Viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOOKSHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		// Use specific config file
		v.SetConfigFile(path)
	} else {
		// Search for config in common locations
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bookshelf")
		v.AddConfigPath("/etc/bookshelf")
	}

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the BOOKSHELF_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Sanitize config values
	sanitizeConfig(&c)

	// Validate required configs
	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("listen", "0.0.0.0:4000")
	v.SetDefault("server_url", "http://localhost:4000")
	v.SetDefault("token_secret", "")
	v.SetDefault("session_key", "")

	v.SetDefault("token.ttl", time.Duration(0)) // tokens don't expire unless configured

	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.max_age", 86400) // 24 hours
	v.SetDefault("session.secure", false)

	v.SetDefault("password.cost", 10)
	v.SetDefault("password.workers", runtime.NumCPU())

	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.url", "./data/bookshelf.db")
	v.SetDefault("database.name", "bookshelf")

	v.SetDefault("upload.dir", "./upload/images")
	v.SetDefault("upload.max_size", 5<<20) // 5 MiB
	v.SetDefault("upload.max_width", 600)
	v.SetDefault("upload.max_height", 900)
	v.SetDefault("upload.quality", 85)
	v.SetDefault("upload.max_disk_usage_percent", 95.0)
	v.SetDefault("upload.orphan_grace", 24*time.Hour)
	v.SetDefault("upload.cleanup_schedule", "0 3 * * *") // every night at 3am

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("login_limit.enabled", true)
	v.SetDefault("login_limit.max_attempts", 5)
	v.SetDefault("login_limit.window", 15*time.Minute)

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.issuer", "https://accounts.google.com")

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("gravatar.enabled", true)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "Bookshelf")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)
}

// bindLegacyEnv binds the env var names older deployments already export.
// The BOOKSHELF_ prefixed names keep working because they are listed first.
func bindLegacyEnv(v *viper.Viper) {
	v.MustBindEnv("database.url", "BOOKSHELF_DATABASE_URL", "MONGO_URL")
	v.MustBindEnv("token_secret", "BOOKSHELF_TOKEN_SECRET", "JWT_SECRET")
	v.MustBindEnv("session_key", "BOOKSHELF_SESSION_KEY", "SESSION_SECRET")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing bookshelf config")
	}

	if c.TokenSecret == "" {
		return fmt.Errorf("token secret is required")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.Database == nil || c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	switch c.Database.Driver {
	case DatabaseDriverSQLite:
	case DatabaseDriverMongo:
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required when using mongo")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be 'sqlite' or 'mongo')", c.Database.Driver)
	}

	if c.Token != nil && c.Token.TTL < 0 {
		return fmt.Errorf("token ttl must not be negative")
	}

	if c.Session != nil {
		if c.Session.Store != SessionStoreMemory && c.Session.Store != SessionStoreCookie {
			return fmt.Errorf("invalid session store: %s (must be 'memory' or 'cookie')", c.Session.Store)
		}
		if c.Session.MaxAge <= 0 {
			return fmt.Errorf("session max age must be greater than 0")
		}
	}

	if c.Password != nil {
		// bcrypt.MinCost and bcrypt.MaxCost
		if c.Password.Cost < 4 || c.Password.Cost > 31 {
			return fmt.Errorf("password cost must be between 4 and 31")
		}
		if c.Password.Workers <= 0 {
			return fmt.Errorf("password workers must be greater than 0")
		}
	}

	if c.Upload != nil {
		if c.Upload.Dir == "" {
			return fmt.Errorf("upload dir is required")
		}
		if c.Upload.MaxSize <= 0 {
			return fmt.Errorf("upload max size must be greater than 0")
		}
		if c.Upload.MaxWidth <= 0 || c.Upload.MaxHeight <= 0 {
			return fmt.Errorf("upload max width and height must be greater than 0")
		}
		if c.Upload.Quality < 1 || c.Upload.Quality > 100 {
			return fmt.Errorf("upload quality must be between 1 and 100")
		}
		if c.Upload.MaxDiskUsagePercent <= 0 || c.Upload.MaxDiskUsagePercent > 100 {
			return fmt.Errorf("upload max disk usage percent must be between 0 and 100")
		}
		if len(strings.Fields(c.Upload.CleanupSchedule)) != 5 {
			return fmt.Errorf("upload cleanup schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
		}
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required")
		}
		if c.Cache.Type != CacheTypeMemory && c.Cache.Type != CacheTypeRedis {
			return fmt.Errorf("invalid cache type: %s (must be 'memory' or 'redis')", c.Cache.Type)
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when using redis cache")
		}
	}

	if c.LoginLimit != nil && c.LoginLimit.Enabled {
		if c.LoginLimit.MaxAttempts <= 0 {
			return fmt.Errorf("login limit max attempts must be greater than 0")
		}
		if c.LoginLimit.Window <= 0 {
			return fmt.Errorf("login limit window must be greater than 0")
		}
	}

	if c.Google != nil && c.Google.ClientID != "" && c.Google.Issuer == "" {
		return fmt.Errorf("google issuer is required when a google client ID is configured")
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = strings.TrimSpace(c.Listen)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Database != nil {
		c.Database.URL = strings.TrimSpace(c.Database.URL)
		c.Database.Driver = DatabaseDriver(strings.ToLower(string(c.Database.Driver)))
	}

	if c.Google != nil {
		c.Google.ClientID = strings.TrimSpace(c.Google.ClientID)
		c.Google.Issuer = urlSanitize(c.Google.Issuer)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// GetTokenTTL returns the configured token lifetime, zero meaning no expiry.
func (c *Config) GetTokenTTL() time.Duration {
	if c.Token == nil {
		return 0
	}
	return c.Token.TTL
}

// GetPasswordCost returns the bcrypt cost factor.
func (c *Config) GetPasswordCost() int {
	if c.Password == nil || c.Password.Cost == 0 {
		return 10
	}
	return c.Password.Cost
}

// GetPasswordWorkers returns the size of the hashing worker pool.
func (c *Config) GetPasswordWorkers() int {
	if c.Password == nil || c.Password.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Password.Workers
}

// GetSessionMaxAge returns the session lifetime in seconds.
func (c *Config) GetSessionMaxAge() int {
	if c.Session == nil || c.Session.MaxAge <= 0 {
		return 86400
	}
	return c.Session.MaxAge
}
