package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
)

var grievanceColumnNames = []string{"id", "tracking_id", "title", "description", "category", "priority", "status", "submitted_by", "assigned_to", "escalated", "escalated_at", "resolved_at", "confidential", "chat_channel", "classified_by", "version", "created_at", "updated_at"}

func grievanceRow(rows *sqlmock.Rows, id, trackingID string, status models.GrievanceStatus, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, trackingID, "WiFi broken in library", "the wifi has been down for 3 days", "technical", "urgent", string(status), "student-1", nil, false, nil, nil, false, nil, "keyword", 1, created, created)
}

func TestGrievanceCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("INSERT INTO grievances").WillReturnResult(sqlmock.NewResult(1, 1))

	g := &models.Grievance{TrackingID: "GRV-2025-000001", Title: "WiFi broken", Status: models.StatusSubmitted}
	require.NoError(t, repo.Create(context.Background(), g))
	assert.NotEmpty(t, g.ID)
	assert.EqualValues(t, 1, g.Version)
	assert.Equal(t, g.CreatedAt, g.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceCreateDuplicateTrackingID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("INSERT INTO grievances").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "grievances_tracking_id_key"})

	err := repo.Create(context.Background(), &models.Grievance{TrackingID: "GRV-2025-000001"})
	assert.ErrorIs(t, err, ErrDuplicateTrackingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceGetByTrackingID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	now := time.Now().UTC()
	rows := grievanceRow(sqlmock.NewRows(grievanceColumnNames), "g1", "GRV-2025-000001", models.StatusSubmitted, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grievances WHERE tracking_id = $1 LIMIT 1")).
		WithArgs("GRV-2025-000001").
		WillReturnRows(rows)

	g, err := repo.GetByTrackingID(context.Background(), "GRV-2025-000001")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, models.CategoryTechnical, g.Category)
	assert.Nil(t, g.AssignedTo)

	mock.ExpectQuery(regexp.QuoteMeta("FROM grievances WHERE id = $1 LIMIT 1")).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	status := models.StatusSubmitted
	filter := models.GrievanceFilter{Status: &status, Viewer: "staff-1", Search: "WiFi", SortBy: "priority", SortOrder: "desc", Page: 2, PageSize: 10}

	now := time.Now().UTC()
	where := "WHERE 1=1 AND status = $1 AND (confidential = FALSE OR submitted_by = $2 OR assigned_to = $2) AND (LOWER(title) LIKE $3 OR LOWER(description) LIKE $3 OR LOWER(tracking_id) LIKE $3)"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + grievanceColumns + " FROM grievances " + where + " ORDER BY " + priorityRankExpr + " DESC, id ASC LIMIT 10 OFFSET 10")).
		WithArgs(status, "staff-1", "%wifi%").
		WillReturnRows(grievanceRow(sqlmock.NewRows(grievanceColumnNames), "g1", "GRV-2025-000001", status, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grievances " + where)).
		WithArgs(status, "staff-1", "%wifi%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceListClampsOversizedPage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 100 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(grievanceColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grievances")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, _, err := repo.List(context.Background(), models.GrievanceFilter{PageSize: 150})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceUpdateVersionConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	assignee := "staff-1"
	g := &models.Grievance{ID: "g1", Status: models.StatusInProgress, AssignedTo: &assignee, Version: 3, UpdatedAt: time.Now()}

	mock.ExpectExec("UPDATE grievances SET status = .+ WHERE id = .+ AND version = ").
		WithArgs(models.StatusInProgress, &assignee, nil, false, sqlmock.AnyArg(), "g1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), g), ErrVersionConflict)
	assert.EqualValues(t, 3, g.Version)

	mock.ExpectExec("UPDATE grievances SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), g))
	assert.EqualValues(t, 4, g.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceMarkEscalatedOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND escalated = FALSE")).WithArgs("g1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND escalated = FALSE")).WithArgs("g1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkEscalated(context.Background(), "g1", at)
	require.NoError(t, err)
	assert.True(t, first)
	second, err := repo.MarkEscalated(context.Background(), "g1", at)
	require.NoError(t, err)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceListEscalationCandidates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	before := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	firstPage := regexp.QuoteMeta("WHERE status IN ('submitted', 'in_progress') AND escalated = FALSE AND created_at <= $1 ORDER BY created_at ASC, id ASC LIMIT 50")
	mock.ExpectQuery("^SELECT .+ " + firstPage + "$").
		WithArgs(before).
		WillReturnRows(grievanceRow(sqlmock.NewRows(grievanceColumnNames), "g1", "GRV-2025-000001", models.StatusSubmitted, before.Add(-time.Hour)))

	items, err := repo.ListEscalationCandidates(context.Background(), EscalationCursor{CreatedBefore: before, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceListEscalationCandidatesAfterCursor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	before := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	lastSeen := before.Add(-2 * time.Hour)
	lastID := "7d0c6f9e-3c1b-4a53-9d1e-2f4b8a6c5e10"
	mock.ExpectQuery(regexp.QuoteMeta("AND created_at <= $1 AND (created_at, id) > ($2, $3) ORDER BY created_at ASC, id ASC LIMIT 200")).
		WithArgs(before, lastSeen, lastID).
		WillReturnRows(sqlmock.NewRows(grievanceColumnNames))

	items, err := repo.ListEscalationCandidates(context.Background(), EscalationCursor{CreatedBefore: before, AfterCreatedAt: lastSeen, AfterID: lastID})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceAddComment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO grievance_comments").
		WithArgs(sqlmock.AnyArg(), "g1", "staff-1", "checking the router").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(7, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET updated_at = $2 WHERE id = $1")).
		WithArgs("g1", created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &models.GrievanceComment{GrievanceID: "g1", AuthorID: "staff-1", Body: "checking the router"}
	require.NoError(t, repo.AddComment(context.Background(), c))
	assert.EqualValues(t, 7, c.Seq)
	assert.Equal(t, created, c.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceAddCommentMissingGrievance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO grievance_comments").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(1, time.Now()))
	mock.ExpectExec("UPDATE grievances SET updated_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AddComment(context.Background(), &models.GrievanceComment{GrievanceID: "gone", AuthorID: "u", Body: "hi"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceListCommentsOrdered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "grievance_id", "author_id", "body", "seq", "created_at"}).
		AddRow("c1", "g1", "u1", "first", 1, now).
		AddRow("c2", "g1", "u2", "second", 2, now).
		AddRow("c3", "g1", "u1", "third", 3, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq ASC")).WithArgs("g1").WillReturnRows(rows)

	comments, err := repo.ListComments(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{comments[0].Body, comments[1].Body, comments[2].Body})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("DELETE FROM grievances").WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "g1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	rows := sqlmock.NewRows([]string{"status", "category", "priority", "escalated", "count"}).
		AddRow("submitted", "technical", "urgent", true, 2).
		AddRow("submitted", "academic", "low", false, 3).
		AddRow("resolved", "technical", "medium", false, 1)
	mock.ExpectQuery("GROUP BY status, category, priority, escalated").WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Escalated)
	assert.Equal(t, 5, stats.ByStatus[models.StatusSubmitted])
	assert.Equal(t, 3, stats.ByCategory[models.CategoryTechnical])
	assert.Equal(t, 1, stats.ByPriority[models.PriorityMedium])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var out map[string]string
	assert.Error(t, repo.Get(context.Background(), "k", &out))
	assert.NoError(t, repo.Set(context.Background(), "k", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "grievance:*"))
	assert.NoError(t, repo.Close())
}
