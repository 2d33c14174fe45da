package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	AutoMigrate        bool
}

// MinIOConfig holds object storage settings for submission attachments.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig is only used when the rate limiter backend is "redis".
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig controls session issuing and login throttling.
type AuthConfig struct {
	JWTSecret    string
	SessionTTL   time.Duration
	CookieName   string
	CookieSecure bool

	RateLimitBackend string // "memory" or "redis"
	IPLimit          int
	EmailLimit       int
	RateWindow       time.Duration
}

// UploadConfig bounds attachment uploads.
type UploadConfig struct {
	MaxFileSize  int64
	MaxFiles     int
	PresignTTL   time.Duration
	BodyLimitMiB int
}

// PaymentConfig holds the hosted checkout credentials and redirect URLs.
type PaymentConfig struct {
	MerchantKey string
	Salt        string
	ActionURL   string
	SuccessURL  string
	FailureURL  string
	// ReturnURL is where the browser lands after the callback. Empty answers with JSON.
	ReturnURL string
}

// NotifyConfig configures the email and WhatsApp channels. A channel with an empty host/URL is disabled.
type NotifyConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	From          string
	WhatsAppURL   string
	WhatsAppToken string
	QueueSize     int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	LogLevel string
	Timezone string
	// ProxyHeader names the header carrying the client IP behind a reverse proxy, e.g. X-Forwarded-For.
	ProxyHeader string
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Upload      UploadConfig
	Payment     PaymentConfig
	Notify      NotifyConfig
}

// Load reads configuration from environment variables.
// A .env file is auto-loaded by cmd/api through github.com/joho/godotenv/autoload;
// real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:     getEnv("APP_HOST", "localhost:8080"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Timezone:    getEnv("APP_TIMEZONE", "Asia/Kolkata"),
		ProxyHeader: getEnv("HTTP_PROXY_HEADER", ""),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			SessionTTL:       getEnvDuration("SESSION_TTL", 24*time.Hour),
			CookieName:       getEnv("SESSION_COOKIE", "session"),
			CookieSecure:     getEnvBool("SESSION_COOKIE_SECURE", true),
			RateLimitBackend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			IPLimit:          getEnvInt("LOGIN_IP_LIMIT", 10),
			EmailLimit:       getEnvInt("LOGIN_EMAIL_LIMIT", 5),
			RateWindow:       getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
		},
		Upload: UploadConfig{
			MaxFileSize:  int64(getEnvInt("UPLOAD_MAX_FILE_BYTES", 10<<20)),
			MaxFiles:     getEnvInt("UPLOAD_MAX_FILES", 10),
			PresignTTL:   getEnvDuration("UPLOAD_PRESIGN_TTL", 15*time.Minute),
			BodyLimitMiB: getEnvInt("HTTP_BODY_LIMIT_MIB", 64),
		},
		Payment: PaymentConfig{
			MerchantKey: getEnv("PAYMENT_MERCHANT_KEY", ""),
			Salt:        getEnv("PAYMENT_SALT", ""),
			ActionURL:   getEnv("PAYMENT_ACTION_URL", "https://test.payu.in/_payment"),
			SuccessURL:  getEnv("PAYMENT_SUCCESS_URL", ""),
			FailureURL:  getEnv("PAYMENT_FAILURE_URL", ""),
			ReturnURL:   getEnv("PAYMENT_RETURN_URL", ""),
		},
		Notify: NotifyConfig{
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnvInt("SMTP_PORT", 587),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
			From:          getEnv("MAIL_FROM", "no-reply@localhost"),
			WhatsAppURL:   getEnv("WHATSAPP_API_URL", ""),
			WhatsAppToken: getEnv("WHATSAPP_API_TOKEN", ""),
			QueueSize:     getEnvInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("15m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
