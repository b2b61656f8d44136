// Package wire builds the grievance service graph shared by the API server
// and the operator CLI.
package wire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/chatbot"
	"github.com/noah-isme/grievance-api/internal/classifier"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/notifier"
	"github.com/noah-isme/grievance-api/internal/realtime"
	"github.com/noah-isme/grievance-api/internal/repository"
	"github.com/noah-isme/grievance-api/internal/service"
	"github.com/noah-isme/grievance-api/pkg/cache"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/database"
	"github.com/noah-isme/grievance-api/pkg/storage"
)

// Container holds every long-lived collaborator. Optional parts are nil
// when their configuration is absent.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client

	Grievances *repository.GrievanceRepository
	Users      *repository.UserRepository
	Audit      *repository.AuditRepository

	Metrics        *service.MetricsService
	Cache          *service.CacheService
	Classifier     *service.ClassificationService
	Notifications  *service.NotificationService
	Grievance      *service.GrievanceService
	Escalation     *service.EscalationService
	Scheduler      *service.EscalationScheduler
	Exports        *service.ExportService
	Auth           *service.AuthService
	Hub            *realtime.Hub
	Chatbot        *chatbot.Bot
	TelegramSender notifier.TelegramSender
}

// Build connects to the configured stores and assembles the services.
// Callers own Close.
func Build(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{Config: cfg, Logger: logger}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.DB = db

	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache and cross-instance events", zap.Error(err))
		} else {
			c.Redis = client
		}
	}

	c.Grievances = repository.NewGrievanceRepository(db)
	c.Users = repository.NewUserRepository(db)
	c.Audit = repository.NewAuditRepository(db)
	c.Metrics = service.NewMetricsService()
	c.Cache = service.NewCacheService(repository.NewCacheRepository(c.Redis, logger), c.Metrics, cfg.Grievance.StatsCacheTTL, logger, c.Redis != nil)

	c.Classifier, err = NewClassifier(cfg.Classifier, c.Metrics, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	if c.Redis != nil {
		c.Hub = realtime.NewHub(realtime.NewRedisBus(c.Redis, cfg.Redis.EventsChannel), logger)
	} else {
		c.Hub = realtime.NewHub(nil, logger)
	}

	if token := cfg.Notify.TelegramBotToken; token != "" {
		bot, err := notifier.NewTelegramBot(token, cfg.Notify.Timeout)
		if err != nil {
			logger.Warn("telegram disabled", zap.Error(err))
		} else {
			c.TelegramSender = bot
		}
	}

	c.Notifications = service.NewNotificationService(c.notifiers(), service.NotificationConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Timeout:    cfg.Notify.Timeout,
	}, c.Metrics, logger)

	validate := validator.New()
	c.Grievance = service.NewGrievanceService(service.GrievanceServiceDeps{
		Store:      c.Grievances,
		Users:      c.Users,
		Classifier: c.Classifier,
		Events:     c.Notifications,
		Cache:      c.Cache,
		Audit:      c.Audit,
		History:    c.Audit,
		Metrics:    c.Metrics,
		Validator:  validate,
		Logger:     logger,
	}, service.GrievanceConfig{
		DefaultChatChannel: cfg.Grievance.DefaultChatChannel,
		TrackCacheTTL:      cfg.Grievance.TrackCacheTTL,
		StatsCacheTTL:      cfg.Grievance.StatsCacheTTL,
	})

	c.Escalation = service.NewEscalationService(c.Grievances, c.Users, c.Notifications, c.Cache, c.Audit, c.Metrics, logger, EscalationConfig(cfg.Grievance))
	c.Scheduler = service.NewEscalationScheduler(c.Escalation, cfg.Grievance.EscalationInterval, logger)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("export storage: %w", err)
	}
	c.Exports = service.NewExportService(c.Grievances, files, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), c.Audit, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logger)

	c.Auth = service.NewAuthService(c.Users, c.Audit, validate, logger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	if c.TelegramSender != nil {
		c.Chatbot = chatbot.New(c.Grievance, c.TelegramSender, logger)
	}
	return c, nil
}

// NewClassifier builds the keyword baseline from the configured lexicon (or
// the embedded default) and attaches the remote AI client when an endpoint is set.
func NewClassifier(cfg config.ClassifierConfig, metrics *service.MetricsService, logger *zap.Logger) (*service.ClassificationService, error) {
	var (
		lex *classifier.Lexicon
		err error
	)
	if cfg.LexiconPath != "" {
		lex, err = classifier.LoadLexicon(cfg.LexiconPath)
	} else {
		lex, err = classifier.DefaultLexicon()
	}
	if err != nil {
		return nil, fmt.Errorf("load classifier lexicon: %w", err)
	}
	keyword := classifier.NewKeywordClassifier(lex)
	svcCfg := service.ClassificationConfig{Timeout: cfg.Timeout, SafetyFailOpen: cfg.SafetyFailOpen}

	if cfg.AIEndpoint == "" {
		return service.NewClassificationService(keyword, nil, svcCfg, metrics, logger), nil
	}
	remote := classifier.NewRemoteClient(cfg.AIEndpoint, cfg.AIAPIKey, cfg.Timeout)
	return service.NewClassificationService(keyword, remote, svcCfg, metrics, logger), nil
}

// notifiers returns the channels enabled by configuration. The log and
// realtime channels are always present.
func (c *Container) notifiers() []notifier.Notifier {
	cfg := c.Config.Notify
	list := []notifier.Notifier{
		notifier.NewLogNotifier(c.Logger),
		notifier.NewRealtimeNotifier(c.Hub),
	}
	if cfg.SMTPHost != "" {
		list = append(list, notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, nil))
	}
	if cfg.TwilioAccountSID != "" {
		list = append(list, notifier.NewSMSNotifier(notifier.SMSConfig{
			BaseURL:    cfg.TwilioBaseURL,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		}, cfg.Timeout))
	}
	if c.TelegramSender != nil {
		list = append(list, notifier.NewTelegramNotifier(c.TelegramSender))
	}
	if cfg.ChatWebhookURL != "" {
		list = append(list, notifier.NewWebhookNotifier(cfg.ChatWebhookURL, cfg.Timeout))
	}
	return list
}

// EscalationConfig converts the environment settings into service form.
// Unknown role names are dropped.
func EscalationConfig(g config.GrievanceConfig) service.EscalationConfig {
	thresholds := make(map[models.GrievancePriority]time.Duration, 4)
	for name, d := range g.EscalationThresholds() {
		if d > 0 {
			thresholds[models.GrievancePriority(name)] = d
		}
	}
	return service.EscalationConfig{
		Thresholds:             thresholds,
		DefaultRecipients:      parseRoles(g.DefaultRecipients),
		HighPriorityRecipients: parseRoles(g.HighPriorityRecipients),
		DefaultChatChannel:     g.DefaultChatChannel,
	}
}

func parseRoles(names []string) []models.UserRole {
	roles := make([]models.UserRole, 0, len(names))
	for _, n := range names {
		if r := models.UserRole(n); r.Valid() {
			roles = append(roles, r)
		}
	}
	return roles
}

// Close releases the database and Redis connections.
func (c *Container) Close() {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		c.Logger.Warn("closing connections", zap.Error(err))
	}
}

// Ping checks the database, for readiness probes.
func (c *Container) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}
