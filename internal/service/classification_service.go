package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/classifier"
	"github.com/noah-isme/grievance-api/internal/models"
)

// keywordClassifier is the local, always-available baseline.
type keywordClassifier interface {
	Classify(title, description string) models.Classification
	CheckSafety(text string) models.SafetyVerdict
}

// remoteClassifier is an optional AI service.
type remoteClassifier interface {
	Classify(ctx context.Context, title, description string) (models.Classification, error)
	CheckSafety(ctx context.Context, text string) (models.SafetyVerdict, error)
}

// ClassificationConfig tunes remote classifier behaviour.
type ClassificationConfig struct {
	Timeout        time.Duration
	SafetyFailOpen bool
}

// ClassificationService combines the keyword baseline with an optional remote
// classifier. Remote failures never surface to callers.
type ClassificationService struct {
	keyword keywordClassifier
	remote  remoteClassifier
	cfg     ClassificationConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewClassificationService builds the service. remote may be nil.
func NewClassificationService(keyword keywordClassifier, remote remoteClassifier, cfg ClassificationConfig, metrics *MetricsService, logger *zap.Logger) *ClassificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ClassificationService{keyword: keyword, remote: remote, cfg: cfg, metrics: metrics, logger: logger}
}

// Classify returns the remote suggestion when available, otherwise the
// keyword result.
func (s *ClassificationService) Classify(ctx context.Context, title, description string) models.Classification {
	if s.remote != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		result, err := s.remote.Classify(callCtx, title, description)
		reason := fallbackReason(callCtx, err)
		cancel()
		if err == nil {
			result.Source = models.ClassifiedByAI
			return result
		}
		s.metrics.RecordClassifierFallback(reason)
		s.logger.Warn("remote classifier failed, using keyword baseline", zap.String("reason", reason), zap.Error(err))
	}
	return s.keyword.Classify(title, description)
}

// CheckSafety applies the local blocklist, then the remote moderator. When
// the moderator is unreachable the verdict follows SafetyFailOpen.
func (s *ClassificationService) CheckSafety(ctx context.Context, text string) models.SafetyVerdict {
	if verdict := s.keyword.CheckSafety(text); !verdict.Safe {
		return verdict
	}
	if s.remote == nil {
		return models.SafetyVerdict{Safe: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	verdict, err := s.remote.CheckSafety(callCtx, text)
	reason := fallbackReason(callCtx, err)
	cancel()
	if err == nil {
		return verdict
	}

	s.metrics.RecordClassifierFallback(reason)
	if s.cfg.SafetyFailOpen {
		s.logger.Warn("safety check unavailable, accepting content", zap.Error(err))
		return models.SafetyVerdict{Safe: true}
	}
	s.logger.Warn("safety check unavailable, rejecting content", zap.Error(err))
	return models.SafetyVerdict{Safe: false, Reason: "content could not be screened right now, please try again later"}
}

func fallbackReason(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, classifier.ErrInvalidResponse):
		return "invalid_response"
	default:
		return "unavailable"
	}
}
