package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/logger"
)

const escalationPageSize = 200

type escalationStore interface {
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	MarkEscalated(ctx context.Context, id string, at time.Time) (bool, error)
	ListEscalationCandidates(ctx context.Context, cursor repository.EscalationCursor) ([]models.Grievance, error)
}

type recipientDirectory interface {
	ListByRoles(ctx context.Context, roles []models.UserRole) ([]models.User, error)
}

// EscalationConfig sets age thresholds and recipient roles.
type EscalationConfig struct {
	Thresholds             map[models.GrievancePriority]time.Duration
	DefaultRecipients      []models.UserRole
	HighPriorityRecipients []models.UserRole
	DefaultChatChannel     string
}

// EscalationService promotes overdue grievances and notifies the configured
// roles. The escalated flag is authoritative; notification failures are
// logged and never undo it.
type EscalationService struct {
	store     escalationStore
	directory recipientDirectory
	events    eventPublisher
	cache     *CacheService
	audit     auditLogger
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       EscalationConfig
	validator *validator.Validate
	now       func() time.Time
}

// NewEscalationService builds the service. Missing thresholds fall back to
// the defaults of 4h, 24h, 72h and 168h.
func NewEscalationService(store escalationStore, directory recipientDirectory, events eventPublisher, cache *CacheService, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg EscalationConfig) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	thresholds := make(map[models.GrievancePriority]time.Duration, len(models.DefaultEscalationThresholds))
	for p, d := range models.DefaultEscalationThresholds {
		thresholds[p] = d
	}
	for p, d := range cfg.Thresholds {
		if d > 0 {
			thresholds[p] = d
		}
	}
	cfg.Thresholds = thresholds
	if len(cfg.DefaultRecipients) == 0 {
		cfg.DefaultRecipients = []models.UserRole{models.RoleAdmin}
	}
	if len(cfg.HighPriorityRecipients) == 0 {
		cfg.HighPriorityRecipients = []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}
	}
	return &EscalationService{
		store:     store,
		directory: directory,
		events:    events,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		validator: validator.New(),
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *EscalationService) WithClock(now func() time.Time) *EscalationService {
	s.now = now
	return s
}

// Threshold returns the age after which a grievance of priority p escalates.
func (s *EscalationService) Threshold(p models.GrievancePriority) time.Duration {
	if d, ok := s.cfg.Thresholds[p]; ok {
		return d
	}
	return s.cfg.Thresholds[models.PriorityMedium]
}

// Overdue reports whether g has outlived its threshold at now.
func (s *EscalationService) Overdue(g *models.Grievance, now time.Time) bool {
	return !g.Escalated && g.Status.IsOpen() && g.Age(now) > s.Threshold(g.Priority)
}

// Sweep escalates every open, unescalated grievance older than its priority
// threshold. Concurrent sweeps are safe: only one writer wins each flip.
func (s *EscalationService) Sweep(ctx context.Context) (*dto.SweepResult, error) {
	started := s.now().UTC()
	timer := time.Now()
	result := &dto.SweepResult{StartedAt: started, TrackingIDs: []string{}}
	defer func() {
		result.Duration = time.Since(timer)
		s.metrics.ObserveSweep(result.Duration)
	}()

	// Nothing younger than the smallest threshold can be overdue.
	cursor := repository.EscalationCursor{CreatedBefore: started.Add(-s.minThreshold()), Limit: escalationPageSize}
	for {
		queryStart := time.Now()
		batch, err := s.store.ListEscalationCandidates(ctx, cursor)
		s.metrics.ObserveDBQuery("escalation_candidates", time.Since(queryStart))
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load escalation candidates")
		}
		for i := range batch {
			g := &batch[i]
			result.Scanned++
			if !s.Overdue(g, started) {
				continue
			}
			escalated, notified, err := s.escalate(ctx, g, s.recipientRoles(g, nil), models.TriggerSweep, nil)
			if err != nil {
				s.logger.Warn("escalation failed", append(logger.Grievance(g.ID, g.TrackingID), zap.Error(err))...)
				continue
			}
			if escalated {
				result.Escalated++
				result.Notified += notified
				result.TrackingIDs = append(result.TrackingIDs, g.TrackingID)
			}
		}
		if len(batch) < cursor.Limit {
			break
		}
		last := batch[len(batch)-1]
		cursor.AfterCreatedAt, cursor.AfterID = last.CreatedAt, last.ID
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	if result.Escalated > 0 {
		s.logger.Info("escalation sweep complete", zap.Int("scanned", result.Scanned), zap.Int("escalated", result.Escalated))
	}
	return result, nil
}

// EscalateManually escalates a grievance regardless of age. Escalating an
// already escalated grievance succeeds without side effects.
func (s *EscalationService) EscalateManually(ctx context.Context, id string, req dto.EscalateRequest, actor *models.JWTClaims) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdministrative() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can escalate grievances")
	}
	for _, role := range req.RecipientRoles {
		if !role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown recipient role %q", role))
		}
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "recipient roles must be staff, admin or super_admin")
	}
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Escalated {
		return g, nil
	}
	won, _, err := s.escalate(ctx, g, s.recipientRoles(g, req.RecipientRoles), models.TriggerManual, actor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to escalate grievance")
	}
	if !won {
		// A concurrent sweep flipped the flag first; return its state.
		return s.load(ctx, id)
	}
	return g, nil
}

func (s *EscalationService) load(ctx context.Context, id string) (*models.Grievance, error) {
	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	return g, nil
}

// escalate flips the flag and, if this call won the flip, notifies recipients.
// g is updated in place.
func (s *EscalationService) escalate(ctx context.Context, g *models.Grievance, roles []models.UserRole, trigger models.EscalationTrigger, actor *models.JWTClaims) (bool, int, error) {
	at := s.now().UTC()
	won, err := s.store.MarkEscalated(ctx, g.ID, at)
	if err != nil {
		return false, 0, err
	}
	if !won {
		return false, 0, nil
	}
	before := auditSnapshot(g)
	g.Escalated = true
	g.EscalatedAt = &at
	g.UpdatedAt = at
	g.Version++

	s.metrics.RecordEscalation(trigger, g.Priority)
	s.recordAudit(ctx, actor, g, before, trigger, roles)
	_ = s.cache.Delete(ctx, statsCacheKey, trackCacheKey(g.TrackingID))
	s.logger.Info("grievance escalated", append(logger.Grievance(g.ID, g.TrackingID),
		zap.String("trigger", string(trigger)), zap.String("priority", string(g.Priority)))...)

	return true, s.notify(ctx, g, roles, trigger), nil
}

func (s *EscalationService) notify(ctx context.Context, g *models.Grievance, roles []models.UserRole, trigger models.EscalationTrigger) int {
	if s.events == nil {
		return 0
	}
	channel := s.cfg.DefaultChatChannel
	if g.ChatChannel != nil && *g.ChatChannel != "" {
		channel = *g.ChatChannel
	}
	base := eventFor(g, models.NotificationEvent{
		Type:    models.EventGrievanceEscalated,
		Trigger: trigger,
		Message: s.escalationMessage(g, trigger),
	}, channel)

	events := []models.NotificationEvent{base}
	users, err := s.directory.ListByRoles(ctx, roles)
	if err != nil {
		s.logger.Warn("escalation recipients unavailable", append(logger.Grievance(g.ID, g.TrackingID), zap.Error(err))...)
	}
	for _, u := range users {
		evt := base
		evt.Title = g.Title
		evt.Recipient = u.Recipient()
		events = append(events, evt)
	}
	s.events.Publish(events...)
	return len(events) - 1
}

func (s *EscalationService) escalationMessage(g *models.Grievance, trigger models.EscalationTrigger) string {
	if trigger == models.TriggerManual {
		return fmt.Sprintf("Grievance %s (%s priority) was escalated by an administrator.", g.TrackingID, g.Priority)
	}
	return fmt.Sprintf("Grievance %s (%s priority) has been open longer than %s without resolution.", g.TrackingID, g.Priority, s.Threshold(g.Priority))
}

// recipientRoles picks explicit roles, else the priority-based default set.
func (s *EscalationService) recipientRoles(g *models.Grievance, requested []models.UserRole) []models.UserRole {
	if len(requested) > 0 {
		return requested
	}
	if g.Priority.IsElevated() {
		return s.cfg.HighPriorityRecipients
	}
	return s.cfg.DefaultRecipients
}

func (s *EscalationService) minThreshold() time.Duration {
	var smallest time.Duration
	for _, d := range s.cfg.Thresholds {
		if smallest == 0 || d < smallest {
			smallest = d
		}
	}
	return smallest
}

func (s *EscalationService) recordAudit(ctx context.Context, actor *models.JWTClaims, g *models.Grievance, before map[string]interface{}, trigger models.EscalationTrigger, roles []models.UserRole) {
	if s.audit == nil {
		return
	}
	after := auditSnapshot(g)
	after["trigger"] = trigger
	after["recipient_roles"] = roles
	oldValues, _ := models.MarshalJSONB(before)
	newValues, _ := models.MarshalJSONB(after)
	var userID *string
	userAgent := "escalation-sweep"
	if actor != nil {
		userID = &actor.UserID
		userAgent = auditSourceService
	}
	resourceID := g.ID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionGrievanceEscalate,
		Resource:   models.AuditResourceGrievance,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record escalation audit", append(logger.Grievance(g.ID, g.TrackingID), zap.Error(err))...)
	}
}
