package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/database"
)

var (
	// ErrDuplicateTrackingID is returned when a freshly minted tracking id already exists.
	ErrDuplicateTrackingID = errors.New("tracking id already exists")
	// ErrVersionConflict is returned when a grievance changed after it was read.
	ErrVersionConflict = errors.New("grievance version conflict")
)

const (
	grievanceColumns         = "id, tracking_id, title, description, category, priority, status, submitted_by, assigned_to, escalated, escalated_at, resolved_at, confidential, chat_channel, classified_by, version, created_at, updated_at"
	trackingIDConstraint     = "grievances_tracking_id_key"
	priorityRankExpr         = "CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"
)

// GrievanceRepository persists grievances and their comments in Postgres.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository constructs a GrievanceRepository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create inserts a grievance at version 1. A clash on tracking_id yields ErrDuplicateTrackingID.
func (r *GrievanceRepository) Create(ctx context.Context, g *models.Grievance) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}
	g.Version = 1

	const query = `INSERT INTO grievances (id, tracking_id, title, description, category, priority, status, submitted_by, assigned_to, escalated, escalated_at, resolved_at, confidential, chat_channel, classified_by, version, created_at, updated_at) VALUES (:id, :tracking_id, :title, :description, :category, :priority, :status, :submitted_by, :assigned_to, :escalated, :escalated_at, :resolved_at, :confidential, :chat_channel, :classified_by, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		if database.IsUniqueViolation(err, trackingIDConstraint) {
			return ErrDuplicateTrackingID
		}
		return fmt.Errorf("create grievance: %w", err)
	}
	return nil
}

// GetByID fetches a grievance by primary key.
func (r *GrievanceRepository) GetByID(ctx context.Context, id string) (*models.Grievance, error) {
	return r.getOne(ctx, "id", id)
}

// GetByTrackingID fetches a grievance by its public tracking id.
func (r *GrievanceRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.Grievance, error) {
	return r.getOne(ctx, "tracking_id", trackingID)
}

func (r *GrievanceRepository) getOne(ctx context.Context, column, value string) (*models.Grievance, error) {
	query := fmt.Sprintf("SELECT %s FROM grievances WHERE %s = $1 LIMIT 1", grievanceColumns, column)
	var g models.Grievance
	if err := r.db.GetContext(ctx, &g, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get grievance by %s: %w", column, err)
	}
	return &g, nil
}

// List returns a page of grievances matching filter plus the total match count.
func (r *GrievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error) {
	where, args := buildGrievanceWhere(filter)

	page, pageSize := filter.Bounds()
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM grievances %s ORDER BY %s LIMIT %d OFFSET %d", grievanceColumns, where, grievanceOrder(filter), pageSize, offset)
	items := make([]models.Grievance, 0)
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list grievances: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM grievances "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count grievances: %w", err)
	}
	return items, total, nil
}

// ListAll returns up to limit grievances matching filter, ignoring paging.
func (r *GrievanceRepository) ListAll(ctx context.Context, filter models.GrievanceFilter, limit int) ([]models.Grievance, error) {
	where, args := buildGrievanceWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM grievances %s ORDER BY %s LIMIT %d", grievanceColumns, where, grievanceOrder(filter), limit)
	items := make([]models.Grievance, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list grievances for export: %w", err)
	}
	return items, nil
}

func buildGrievanceWhere(filter models.GrievanceFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		conditions = append(conditions, "status = "+next(*filter.Status))
	}
	if filter.Category != nil {
		conditions = append(conditions, "category = "+next(*filter.Category))
	}
	if filter.Priority != nil {
		conditions = append(conditions, "priority = "+next(*filter.Priority))
	}
	if filter.Escalated != nil {
		conditions = append(conditions, "escalated = "+next(*filter.Escalated))
	}
	if filter.SubmittedBy != "" {
		conditions = append(conditions, "submitted_by = "+next(filter.SubmittedBy))
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "assigned_to = "+next(filter.AssignedTo))
	}
	if filter.Viewer != "" {
		p := next(filter.Viewer)
		conditions = append(conditions, fmt.Sprintf("(confidential = FALSE OR submitted_by = %s OR assigned_to = %s)", p, p))
	}
	if filter.Search != "" {
		p := next("%" + strings.ToLower(filter.Search) + "%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(tracking_id) LIKE %s)", p, p, p))
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= "+next(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conditions = append(conditions, "created_at < "+next(*filter.CreatedTo))
	}

	where := "WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func grievanceOrder(filter models.GrievanceFilter) string {
	sortExpr := map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"status":     "status",
		"title":      "title",
		"priority":   priorityRankExpr,
	}[filter.SortBy]
	if sortExpr == "" {
		sortExpr = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	return fmt.Sprintf("%s %s, id ASC", sortExpr, sortOrder)
}

// Update writes the mutable workflow fields of g in a single statement,
// provided the stored version still equals g.Version. On success g.Version
// is advanced.
func (r *GrievanceRepository) Update(ctx context.Context, g *models.Grievance) error {
	const query = `UPDATE grievances SET status = :status, assigned_to = :assigned_to, resolved_at = :resolved_at, confidential = :confidential, updated_at = :updated_at, version = version + 1 WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, g)
	if err != nil {
		return fmt.Errorf("update grievance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grievance rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	g.Version++
	return nil
}

// MarkEscalated flips escalated to true exactly once. It reports false when
// the grievance was already escalated or does not exist.
func (r *GrievanceRepository) MarkEscalated(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE grievances SET escalated = TRUE, escalated_at = $2, updated_at = $2, version = version + 1 WHERE id = $1 AND escalated = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark grievance escalated: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark grievance escalated rows: %w", err)
	}
	return affected == 1, nil
}

// EscalationCursor pages through escalation candidates in creation order.
type EscalationCursor struct {
	CreatedBefore  time.Time
	AfterCreatedAt time.Time
	AfterID        string
	Limit          int
}

// ListEscalationCandidates returns open, not yet escalated grievances created
// before cursor.CreatedBefore and after the cursor position.
func (r *GrievanceRepository) ListEscalationCandidates(ctx context.Context, cursor EscalationCursor) ([]models.Grievance, error) {
	if cursor.Limit <= 0 {
		cursor.Limit = 200
	}
	where := "status IN ('submitted', 'in_progress') AND escalated = FALSE AND created_at <= $1"
	args := []interface{}{cursor.CreatedBefore}
	// id is a uuid column; the first page has no position to compare against.
	if cursor.AfterID != "" {
		where += " AND (created_at, id) > ($2, $3)"
		args = append(args, cursor.AfterCreatedAt, cursor.AfterID)
	}
	query := fmt.Sprintf("SELECT %s FROM grievances WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d", grievanceColumns, where, cursor.Limit)
	items := make([]models.Grievance, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list escalation candidates: %w", err)
	}
	return items, nil
}

// AddComment appends a comment. The database assigns seq and created_at,
// so ordering follows arrival at the server.
func (r *GrievanceRepository) AddComment(ctx context.Context, c *models.GrievanceComment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add comment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO grievance_comments (id, grievance_id, author_id, body) VALUES ($1, $2, $3, $4) RETURNING seq, created_at`
	if err := tx.QueryRowxContext(ctx, insert, c.ID, c.GrievanceID, c.AuthorID, c.Body).Scan(&c.Seq, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	const touch = `UPDATE grievances SET updated_at = $2 WHERE id = $1`
	res, err := tx.ExecContext(ctx, touch, c.GrievanceID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch grievance: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add comment: %w", err)
	}
	return nil
}

// ListComments returns comments in arrival order.
func (r *GrievanceRepository) ListComments(ctx context.Context, grievanceID string) ([]models.GrievanceComment, error) {
	const query = `SELECT id, grievance_id, author_id, body, seq, created_at FROM grievance_comments WHERE grievance_id = $1 ORDER BY seq ASC`
	comments := make([]models.GrievanceComment, 0)
	if err := r.db.SelectContext(ctx, &comments, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Delete removes a grievance and, by cascade, its comments.
func (r *GrievanceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grievances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grievance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete grievance rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type grievanceStatsRow struct {
	Status    models.GrievanceStatus   `db:"status"`
	Category  models.GrievanceCategory `db:"category"`
	Priority  models.GrievancePriority `db:"priority"`
	Escalated bool                     `db:"escalated"`
	Count     int                      `db:"count"`
}

// Stats aggregates grievance counts.
func (r *GrievanceRepository) Stats(ctx context.Context) (*models.GrievanceStats, error) {
	const query = `SELECT status, category, priority, escalated, COUNT(*) AS count FROM grievances GROUP BY status, category, priority, escalated`
	var rows []grievanceStatsRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("grievance stats: %w", err)
	}
	stats := &models.GrievanceStats{
		ByStatus:    map[models.GrievanceStatus]int{},
		ByCategory:  map[models.GrievanceCategory]int{},
		ByPriority:  map[models.GrievancePriority]int{},
		GeneratedAt: time.Now().UTC(),
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByCategory[row.Category] += row.Count
		stats.ByPriority[row.Priority] += row.Count
		if row.Escalated {
			stats.Escalated += row.Count
		}
	}
	return stats, nil
}
