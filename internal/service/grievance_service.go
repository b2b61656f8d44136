package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/logger"
	"github.com/noah-isme/grievance-api/pkg/trackingid"
)

const (
	maxCommentLength   = 1000
	statsCacheKey      = "grievance:stats"
	confidentialTitle  = "(confidential grievance)"
	auditSourceService = "grievance-service"
)

type grievanceStore interface {
	Create(ctx context.Context, g *models.Grievance) error
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error)
	Update(ctx context.Context, g *models.Grievance) error
	AddComment(ctx context.Context, c *models.GrievanceComment) error
	ListComments(ctx context.Context, grievanceID string) ([]models.GrievanceComment, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.GrievanceStats, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditHistory interface {
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

type grievanceClassifier interface {
	Classify(ctx context.Context, title, description string) models.Classification
	CheckSafety(ctx context.Context, text string) models.SafetyVerdict
}

type eventPublisher interface {
	Publish(events ...models.NotificationEvent) int
}

// GrievanceConfig carries lifecycle settings.
type GrievanceConfig struct {
	DefaultChatChannel string
	TrackCacheTTL      time.Duration
	StatsCacheTTL      time.Duration
}

// GrievanceService implements the grievance lifecycle.
type GrievanceService struct {
	store      grievanceStore
	users      userReader
	classifier grievanceClassifier
	trackingID trackingid.Generator
	events     eventPublisher
	cache      *CacheService
	audit      auditLogger
	history    auditHistory
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        GrievanceConfig
	now        func() time.Time
}

// GrievanceServiceDeps groups collaborators. Cache, History and Metrics are optional.
type GrievanceServiceDeps struct {
	Store      grievanceStore
	Users      userReader
	Classifier grievanceClassifier
	TrackingID trackingid.Generator
	Events     eventPublisher
	Cache      *CacheService
	Audit      auditLogger
	History    auditHistory
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewGrievanceService constructs the lifecycle service.
func NewGrievanceService(deps GrievanceServiceDeps, cfg GrievanceConfig) *GrievanceService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.TrackingID == nil {
		deps.TrackingID = trackingid.NewGenerator()
	}
	return &GrievanceService{
		store:      deps.Store,
		users:      deps.Users,
		classifier: deps.Classifier,
		trackingID: deps.TrackingID,
		events:     deps.Events,
		cache:      deps.Cache,
		audit:      deps.Audit,
		history:    deps.History,
		metrics:    deps.Metrics,
		validator:  deps.Validator,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        deps.Clock,
	}
}

// Submit validates, screens and classifies a new grievance, then persists it
// under a fresh tracking ID. Classifier and notification failures never fail
// the submission.
func (s *GrievanceService) Submit(ctx context.Context, req dto.SubmitGrievanceRequest, actor *models.JWTClaims) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grievance payload")
	}

	verdict := s.classifier.CheckSafety(ctx, req.Title+"\n"+req.Description)
	if !verdict.Safe {
		reason := verdict.Reason
		if reason == "" {
			reason = "grievance content was rejected by the safety check"
		}
		return nil, appErrors.Clone(appErrors.ErrContentRejected, reason)
	}

	now := s.now().UTC()
	g := &models.Grievance{
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.StatusSubmitted,
		SubmittedBy:  actor.UserID,
		Confidential: req.Confidential,
		ChatChannel:  trimmedOrNil(req.ChatChannel),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.applyClassification(ctx, g, req)

	if err := s.create(ctx, g); err != nil {
		return nil, err
	}

	s.metrics.RecordSubmission(g)
	s.recordAudit(ctx, actor, models.AuditActionGrievanceSubmit, g.ID, nil, auditSnapshot(g))
	s.invalidate(ctx, "")
	s.logger.Info("grievance submitted", logger.Grievance(g.ID, g.TrackingID)...)

	s.publish(ctx, g, models.NotificationEvent{
		Type:    models.EventGrievanceSubmitted,
		Message: fmt.Sprintf("Grievance %s has been received and is awaiting review.", g.TrackingID),
	}, g.SubmittedBy)
	return g, nil
}

func (s *GrievanceService) applyClassification(ctx context.Context, g *models.Grievance, req dto.SubmitGrievanceRequest) {
	if req.Category != nil && req.Priority != nil {
		g.Category, g.Priority = *req.Category, *req.Priority
		g.ClassifiedBy = models.ClassifiedByUser
		return
	}
	result := s.classifier.Classify(ctx, g.Title, g.Description)
	g.Category, g.Priority, g.ClassifiedBy = result.Category, result.Priority, result.Source
	if req.Category != nil {
		g.Category = *req.Category
	}
	if req.Priority != nil {
		g.Priority = *req.Priority
	}
	if !g.Category.Valid() {
		g.Category = models.CategoryOther
	}
	if !g.Priority.Valid() {
		g.Priority = models.PriorityMedium
	}
}

// create inserts g, drawing a second tracking ID once on collision.
func (s *GrievanceService) create(ctx context.Context, g *models.Grievance) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		g.TrackingID = s.trackingID.Generate(g.CreatedAt)
		err = s.store.Create(ctx, g)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateTrackingID) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grievance")
		}
		s.logger.Warn("tracking id collision", zap.String("tracking_id", g.TrackingID), zap.Int("attempt", attempt+1))
	}
	return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "could not allocate a unique tracking id, please retry")
}

// UpdateStatus moves a grievance along the transition table, optionally
// reassigning it in the same write.
func (s *GrievanceService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor *models.JWTClaims) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanHandleGrievances() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff and administrators can change grievance status")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdministrative() && g.Confidential && !g.IsAssignedTo(actor.UserID) && g.SubmittedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	if !g.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, transitionMessage(g.Status, req.Status))
	}

	var assignee *models.User
	if req.AssignedTo != nil {
		assignee, err = s.resolveAssignee(ctx, strings.TrimSpace(*req.AssignedTo))
		if err != nil {
			return nil, err
		}
	}

	before := auditSnapshot(g)
	oldStatus := g.Status
	now := s.now().UTC()
	g.Status = req.Status
	if req.Status == models.StatusResolved && g.ResolvedAt == nil {
		g.ResolvedAt = &now
	}
	if assignee != nil {
		g.AssignedTo = &assignee.ID
	}
	g.UpdatedAt = now

	if err := s.store.Update(ctx, g); err != nil {
		return nil, s.writeError(err)
	}

	s.metrics.RecordTransition(oldStatus, g.Status)
	s.recordAudit(ctx, actor, models.AuditActionGrievanceStatus, g.ID, before, auditSnapshot(g))
	s.invalidate(ctx, g.TrackingID)
	s.logger.Info("grievance status changed", append(logger.Grievance(g.ID, g.TrackingID),
		zap.String("from", string(oldStatus)), zap.String("to", string(g.Status)))...)

	recipients := []string{g.SubmittedBy}
	if assignee != nil && assignee.ID != actor.UserID {
		recipients = append(recipients, assignee.ID)
	}
	s.publish(ctx, g, models.NotificationEvent{
		Type:      models.EventGrievanceStatusChanged,
		OldStatus: oldStatus,
		NewStatus: g.Status,
		Message:   fmt.Sprintf("Grievance %s moved from %s to %s.", g.TrackingID, oldStatus, g.Status),
	}, recipients...)
	return g, nil
}

func (s *GrievanceService) resolveAssignee(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned_to must not be empty")
	}
	if !validID(userID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned_to must be a user id")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assignee does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}
	if !user.Active || !user.Role.CanHandleGrievances() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee must be an active staff member or administrator")
	}
	return user, nil
}

// AddComment appends a comment. Ordering is assigned by the database.
func (s *GrievanceService) AddComment(ctx context.Context, id string, req dto.AddCommentRequest, actor *models.JWTClaims) (*models.GrievanceComment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment text must not be empty")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("comment text must be at most %d characters", maxCommentLength))
	}

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(g, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}

	comment := &models.GrievanceComment{GrievanceID: g.ID, AuthorID: actor.UserID, Body: text}
	if err := s.store.AddComment(ctx, comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store comment")
	}

	s.recordAudit(ctx, actor, models.AuditActionGrievanceComment, g.ID, nil, map[string]interface{}{
		"comment_id": comment.ID,
		"length":     utf8.RuneCountInString(text),
	})
	s.invalidate(ctx, g.TrackingID)

	var recipients []string
	if g.SubmittedBy != actor.UserID {
		recipients = append(recipients, g.SubmittedBy)
	}
	if g.AssignedTo != nil && *g.AssignedTo != actor.UserID {
		recipients = append(recipients, *g.AssignedTo)
	}
	s.publish(ctx, g, models.NotificationEvent{
		Type:    models.EventGrievanceCommented,
		Message: fmt.Sprintf("A new comment was added to grievance %s.", g.TrackingID),
	}, recipients...)
	return comment, nil
}

// Track resolves a public tracking ID. Viewers who may see the grievance get
// the full projection; everyone else gets the anonymous one.
func (s *GrievanceService) Track(ctx context.Context, rawID string, viewer *models.JWTClaims) (*dto.GrievanceView, error) {
	trackingID, err := trackingid.Normalize(rawID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tracking id must look like GRV-YYYY-NNNNNN")
	}

	cacheKey := trackCacheKey(trackingID)
	if viewer == nil {
		var cached dto.GrievanceView
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	g, err := s.store.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	if err := s.attachComments(ctx, g); err != nil {
		return nil, err
	}

	full := canView(g, viewer)
	view := dto.NewGrievanceView(g, full)
	if !full {
		_ = s.cache.Set(ctx, cacheKey, view, s.cfg.TrackCacheTTL)
	}
	return view, nil
}

// Get returns a grievance with comments if actor may see it.
func (s *GrievanceService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(g, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	if err := s.attachComments(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns a page of grievances scoped to what actor may see.
func (s *GrievanceService) List(ctx context.Context, query dto.GrievanceQuery, actor *models.JWTClaims) ([]models.Grievance, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter, err := FilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case actor.Role.IsAdministrative():
	case actor.Role == models.RoleStaff:
		filter.Viewer = actor.UserID
	default:
		filter.SubmittedBy = actor.UserID
	}

	start := s.now()
	items, total, err := s.store.List(ctx, filter)
	s.metrics.ObserveDBQuery("grievance_list", s.now().Sub(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grievances")
	}
	page, size := filter.Bounds()
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SetConfidential toggles the confidentiality flag.
func (s *GrievanceService) SetConfidential(ctx context.Context, id string, req dto.SetConfidentialRequest, actor *models.JWTClaims) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdministrative() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can change confidentiality")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confidentiality payload")
	}
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Confidential == *req.Confidential {
		return g, nil
	}

	before := auditSnapshot(g)
	g.Confidential = *req.Confidential
	g.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, g); err != nil {
		return nil, s.writeError(err)
	}
	s.recordAudit(ctx, actor, models.AuditActionGrievanceConfidential, g.ID, before, auditSnapshot(g))
	s.invalidate(ctx, g.TrackingID)
	return g, nil
}

// Delete removes a grievance permanently.
func (s *GrievanceService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdministrative() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete grievances")
	}
	g, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, g.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grievance")
	}
	s.recordAudit(ctx, actor, models.AuditActionGrievanceDelete, g.ID, auditSnapshot(g), nil)
	s.invalidate(ctx, g.TrackingID)
	s.logger.Info("grievance deleted", logger.Grievance(g.ID, g.TrackingID)...)
	return nil
}

// Stats returns aggregate counts, served from cache when warm.
func (s *GrievanceService) Stats(ctx context.Context) (*models.GrievanceStats, bool, error) {
	var cached models.GrievanceStats
	if hit, _ := s.cache.Get(ctx, statsCacheKey, &cached); hit {
		return &cached, true, nil
	}
	start := s.now()
	stats, err := s.store.Stats(ctx)
	s.metrics.ObserveDBQuery("grievance_stats", s.now().Sub(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute grievance stats")
	}
	stats.GeneratedAt = s.now().UTC()
	_ = s.cache.Set(ctx, statsCacheKey, stats, s.cfg.StatsCacheTTL)
	return stats, false, nil
}

// History returns the audit trail recorded for a grievance.
func (s *GrievanceService) History(ctx context.Context, id string) ([]models.AuditLog, error) {
	if s.history == nil {
		return []models.AuditLog{}, nil
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.history.ListByResource(ctx, models.AuditResourceGrievance, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance history")
	}
	return logs, nil
}

func (s *GrievanceService) load(ctx context.Context, id string) (*models.Grievance, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grievance id is required")
	}
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	return g, nil
}

func (s *GrievanceService) attachComments(ctx context.Context, g *models.Grievance) error {
	comments, err := s.store.ListComments(ctx, g.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comments")
	}
	g.Comments = comments
	return nil
}

func (s *GrievanceService) writeError(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return appErrors.Clone(appErrors.ErrConflict, "grievance was modified concurrently, reload and retry")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grievance")
}

func (s *GrievanceService) invalidate(ctx context.Context, trackingID string) {
	keys := []string{statsCacheKey}
	if trackingID != "" {
		keys = append(keys, trackCacheKey(trackingID))
	}
	_ = s.cache.Delete(ctx, keys...)
}

// publish sends base to each listed user plus one channel broadcast.
func (s *GrievanceService) publish(ctx context.Context, g *models.Grievance, base models.NotificationEvent, userIDs ...string) {
	if s.events == nil {
		return
	}
	base = eventFor(g, base, s.chatChannel(g))
	events := []models.NotificationEvent{base}
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup || userID == "" {
			continue
		}
		seen[userID] = struct{}{}
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			s.logger.Warn("notification recipient lookup failed", append(logger.Grievance(g.ID, g.TrackingID),
				zap.String("user_id", userID), zap.Error(err))...)
			continue
		}
		evt := base
		evt.Recipient = user.Recipient()
		evt.Title = g.Title
		events = append(events, evt)
	}
	s.events.Publish(events...)
}

func (s *GrievanceService) chatChannel(g *models.Grievance) string {
	if g.ChatChannel != nil && *g.ChatChannel != "" {
		return *g.ChatChannel
	}
	return s.cfg.DefaultChatChannel
}

func (s *GrievanceService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, grievanceID string, before, after interface{}) {
	if s.audit == nil {
		return
	}
	oldValues, err := models.MarshalJSONB(before)
	if err != nil {
		s.logger.Warn("encode audit old values", zap.Error(err))
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
		if snapshot, ok := after.(map[string]interface{}); ok && actor.Department != "" {
			snapshot["actor_department"] = actor.Department
		}
	}
	newValues, err := models.MarshalJSONB(after)
	if err != nil {
		s.logger.Warn("encode audit new values", zap.Error(err))
	}
	resourceID := grievanceID
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   models.AuditResourceGrievance,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  auditSourceService,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record grievance audit", zap.String("action", action), zap.String("grievance_id", grievanceID), zap.Error(err))
	}
}

// eventFor fills the grievance fields of an event. Broadcast events of
// confidential grievances carry a placeholder title.
func eventFor(g *models.Grievance, evt models.NotificationEvent, channel string) models.NotificationEvent {
	evt.GrievanceID = g.ID
	evt.TrackingID = g.TrackingID
	evt.Title = g.Title
	if g.Confidential {
		evt.Title = confidentialTitle
	}
	evt.Category = g.Category
	evt.Priority = g.Priority
	evt.ChatChannel = channel
	return evt
}

// canView reports whether actor may see identities and confidential content.
func canView(g *models.Grievance, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	switch {
	case actor.Role.IsAdministrative():
		return true
	case g.SubmittedBy == actor.UserID, g.IsAssignedTo(actor.UserID):
		return true
	case actor.Role == models.RoleStaff:
		return !g.Confidential
	}
	return false
}

func auditSnapshot(g *models.Grievance) map[string]interface{} {
	snap := map[string]interface{}{
		"tracking_id":  g.TrackingID,
		"status":       g.Status,
		"category":     g.Category,
		"priority":     g.Priority,
		"escalated":    g.Escalated,
		"confidential": g.Confidential,
		"version":      g.Version,
	}
	if g.AssignedTo != nil {
		snap["assigned_to"] = *g.AssignedTo
	}
	if g.ResolvedAt != nil {
		snap["resolved_at"] = g.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return snap
}

func trackCacheKey(trackingID string) string {
	return "grievance:track:" + trackingID
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// validID reports whether id has the canonical uuid form stored in id columns.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func transitionMessage(from, to models.GrievanceStatus) string {
	allowed := make([]string, 0, 3)
	for _, next := range from.NextStatuses() {
		allowed = append(allowed, string(next))
	}
	return fmt.Sprintf("cannot move grievance from %s to %s (allowed: %s)", from, to, strings.Join(allowed, ", "))
}

// FilterFromQuery converts list query parameters into a repository filter.
func FilterFromQuery(q dto.GrievanceQuery) (models.GrievanceFilter, error) {
	filter := models.GrievanceFilter{
		AssignedTo: strings.TrimSpace(q.Assignee),
		Search:     strings.TrimSpace(q.Search),
		Page:       q.Page,
		PageSize:   q.PageSize,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	}
	if filter.AssignedTo != "" && !validID(filter.AssignedTo) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "assigned_to must be a user id")
	}
	if q.Status != "" {
		status := models.GrievanceStatus(strings.ToLower(q.Status))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", q.Status))
		}
		filter.Status = &status
	}
	if q.Category != "" {
		category := models.GrievanceCategory(strings.ToLower(q.Category))
		if !category.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", q.Category))
		}
		filter.Category = &category
	}
	if q.Priority != "" {
		priority := models.GrievancePriority(strings.ToLower(q.Priority))
		if !priority.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", q.Priority))
		}
		filter.Priority = &priority
	}
	if q.Escalated != "" {
		switch strings.ToLower(q.Escalated) {
		case "true", "1", "yes":
			v := true
			filter.Escalated = &v
		case "false", "0", "no":
			v := false
			filter.Escalated = &v
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "escalated must be true or false")
		}
	}
	var err error
	if filter.CreatedFrom, err = parseDateParam("from", q.From); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseDateParam("to", q.To); err != nil {
		return filter, err
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}

// parseDateParam accepts RFC 3339 timestamps or YYYY-MM-DD dates.
func parseDateParam(name, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name))
	}
	if name == "to" {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
