package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers understood by pkg/database.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
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
	Grievance  GrievanceConfig
	Classifier ClassifierConfig
	Notify     NotifyConfig
	RateLimit  RateLimitConfig
	Exports    ExportsConfig
	GRPC       GRPCConfig
}

type DatabaseConfig struct {
	Driver       string
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
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	EventsChannel string
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GrievanceConfig tunes the lifecycle engine and escalation sweep.
type GrievanceConfig struct {
	EscalationEnabled      bool
	EscalationInterval     time.Duration
	UrgentThreshold        time.Duration
	HighThreshold          time.Duration
	MediumThreshold        time.Duration
	LowThreshold           time.Duration
	DefaultRecipients      []string
	HighPriorityRecipients []string
	DefaultChatChannel     string
	TrackCacheTTL          time.Duration
	StatsCacheTTL          time.Duration
}

// ClassifierConfig configures the keyword baseline and the optional AI service.
type ClassifierConfig struct {
	LexiconPath    string
	AIEndpoint     string
	AIAPIKey       string
	Timeout        time.Duration
	SafetyFailOpen bool
}

// NotifyConfig configures outbound notification channels.
type NotifyConfig struct {
	Timeout    time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioBaseURL    string

	TelegramBotToken      string
	TelegramWebhookSecret string

	ChatWebhookURL string
}

// RateLimitConfig throttles the public tracking endpoint per client IP.
type RateLimitConfig struct {
	TrackRPS   float64
	TrackBurst int
}

// ExportsConfig controls grievance export rendering & download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// GRPCConfig exposes the gRPC health service.
type GRPCConfig struct {
	Enabled bool
	Port    int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
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
		Enabled:       v.GetBool("ENABLE_REDIS"),
		Host:          v.GetString("REDIS_HOST"),
		Port:          v.GetInt("REDIS_PORT"),
		Password:      v.GetString("REDIS_PASSWORD"),
		DB:            v.GetInt("REDIS_DB"),
		EventsChannel: v.GetString("REDIS_EVENTS_CHANNEL"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Grievance = GrievanceConfig{
		EscalationEnabled:      v.GetBool("GRIEVANCE_ESCALATION_ENABLED"),
		EscalationInterval:     parseDuration(v.GetString("GRIEVANCE_ESCALATION_INTERVAL"), time.Hour),
		UrgentThreshold:        parseDuration(v.GetString("GRIEVANCE_THRESHOLD_URGENT"), 4*time.Hour),
		HighThreshold:          parseDuration(v.GetString("GRIEVANCE_THRESHOLD_HIGH"), 24*time.Hour),
		MediumThreshold:        parseDuration(v.GetString("GRIEVANCE_THRESHOLD_MEDIUM"), 72*time.Hour),
		LowThreshold:           parseDuration(v.GetString("GRIEVANCE_THRESHOLD_LOW"), 168*time.Hour),
		DefaultRecipients:      splitAndTrim(v.GetString("GRIEVANCE_ESCALATION_RECIPIENTS")),
		HighPriorityRecipients: splitAndTrim(v.GetString("GRIEVANCE_ESCALATION_HIGH_RECIPIENTS")),
		DefaultChatChannel:     v.GetString("GRIEVANCE_CHAT_CHANNEL"),
		TrackCacheTTL:          parseDuration(v.GetString("GRIEVANCE_TRACK_CACHE_TTL"), time.Minute),
		StatsCacheTTL:          parseDuration(v.GetString("GRIEVANCE_STATS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Classifier = ClassifierConfig{
		LexiconPath:    v.GetString("CLASSIFIER_LEXICON_PATH"),
		AIEndpoint:     v.GetString("CLASSIFIER_AI_ENDPOINT"),
		AIAPIKey:       v.GetString("CLASSIFIER_AI_API_KEY"),
		Timeout:        parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 10*time.Second),
		SafetyFailOpen: v.GetBool("CLASSIFIER_SAFETY_FAIL_OPEN"),
	}

	cfg.Notify = NotifyConfig{
		Timeout:               parseDuration(v.GetString("NOTIFY_TIMEOUT"), 10*time.Second),
		Workers:               v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:            v.GetInt("NOTIFY_RETRIES"),
		RetryDelay:            parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
		SMTPHost:              v.GetString("NOTIFY_SMTP_HOST"),
		SMTPPort:              v.GetInt("NOTIFY_SMTP_PORT"),
		SMTPUsername:          v.GetString("NOTIFY_SMTP_USERNAME"),
		SMTPPassword:          v.GetString("NOTIFY_SMTP_PASSWORD"),
		SMTPFrom:              v.GetString("NOTIFY_SMTP_FROM"),
		TwilioAccountSID:      v.GetString("NOTIFY_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       v.GetString("NOTIFY_TWILIO_AUTH_TOKEN"),
		TwilioFrom:            v.GetString("NOTIFY_TWILIO_FROM"),
		TwilioBaseURL:         v.GetString("NOTIFY_TWILIO_BASE_URL"),
		TelegramBotToken:      v.GetString("NOTIFY_TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret: v.GetString("NOTIFY_TELEGRAM_WEBHOOK_SECRET"),
		ChatWebhookURL:        v.GetString("NOTIFY_CHAT_WEBHOOK_URL"),
	}

	cfg.RateLimit = RateLimitConfig{
		TrackRPS:   v.GetFloat64("RATE_LIMIT_TRACK_RPS"),
		TrackBurst: v.GetInt("RATE_LIMIT_TRACK_BURST"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.GRPC = GRPCConfig{
		Enabled: v.GetBool("GRPC_ENABLED"),
		Port:    v.GetInt("GRPC_PORT"),
	}

	return cfg, nil
}

// EscalationThresholds returns the per-priority age limits keyed by priority name.
func (g GrievanceConfig) EscalationThresholds() map[string]time.Duration {
	return map[string]time.Duration{
		"urgent": g.UrgentThreshold,
		"high":   g.HighThreshold,
		"medium": g.MediumThreshold,
		"low":    g.LowThreshold,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "grievances")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_EVENTS_CHANNEL", "grievance:events")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "grievance-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRIEVANCE_ESCALATION_ENABLED", true)
	v.SetDefault("GRIEVANCE_ESCALATION_INTERVAL", "1h")
	v.SetDefault("GRIEVANCE_THRESHOLD_URGENT", "4h")
	v.SetDefault("GRIEVANCE_THRESHOLD_HIGH", "24h")
	v.SetDefault("GRIEVANCE_THRESHOLD_MEDIUM", "72h")
	v.SetDefault("GRIEVANCE_THRESHOLD_LOW", "168h")
	v.SetDefault("GRIEVANCE_ESCALATION_RECIPIENTS", "admin")
	v.SetDefault("GRIEVANCE_ESCALATION_HIGH_RECIPIENTS", "admin,super_admin")
	v.SetDefault("GRIEVANCE_CHAT_CHANNEL", "")
	v.SetDefault("GRIEVANCE_TRACK_CACHE_TTL", "1m")
	v.SetDefault("GRIEVANCE_STATS_CACHE_TTL", "5m")

	v.SetDefault("CLASSIFIER_LEXICON_PATH", "")
	v.SetDefault("CLASSIFIER_AI_ENDPOINT", "")
	v.SetDefault("CLASSIFIER_AI_API_KEY", "")
	v.SetDefault("CLASSIFIER_TIMEOUT", "10s")
	v.SetDefault("CLASSIFIER_SAFETY_FAIL_OPEN", true)

	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_WORKERS", 4)
	v.SetDefault("NOTIFY_RETRIES", 2)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFY_SMTP_HOST", "")
	v.SetDefault("NOTIFY_SMTP_PORT", 587)
	v.SetDefault("NOTIFY_SMTP_USERNAME", "")
	v.SetDefault("NOTIFY_SMTP_PASSWORD", "")
	v.SetDefault("NOTIFY_SMTP_FROM", "grievances@localhost")
	v.SetDefault("NOTIFY_TWILIO_ACCOUNT_SID", "")
	v.SetDefault("NOTIFY_TWILIO_AUTH_TOKEN", "")
	v.SetDefault("NOTIFY_TWILIO_FROM", "")
	v.SetDefault("NOTIFY_TWILIO_BASE_URL", "https://api.twilio.com")
	v.SetDefault("NOTIFY_TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("NOTIFY_TELEGRAM_WEBHOOK_SECRET", "")
	v.SetDefault("NOTIFY_CHAT_WEBHOOK_URL", "")

	v.SetDefault("RATE_LIMIT_TRACK_RPS", 2)
	v.SetDefault("RATE_LIMIT_TRACK_BURST", 10)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("GRPC_ENABLED", false)
	v.SetDefault("GRPC_PORT", 9090)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
