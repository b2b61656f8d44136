package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testNow} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memGrievanceStore mimics GrievanceRepository semantics in memory.
type memGrievanceStore struct {
	mu         sync.Mutex
	clock      *testClock
	grievances map[string]*models.Grievance
	comments   map[string][]models.GrievanceComment
	seq        int64
	nextID     int

	createErrs []error
	updateErr  error
	lastFilter models.GrievanceFilter
}

func newMemGrievanceStore(clock *testClock) *memGrievanceStore {
	return &memGrievanceStore{
		clock:      clock,
		grievances: make(map[string]*models.Grievance),
		comments:   make(map[string][]models.GrievanceComment),
	}
}

func (m *memGrievanceStore) put(g models.Grievance) *models.Grievance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		m.nextID++
		g.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", m.nextID)
	}
	if g.Version == 0 {
		g.Version = 1
	}
	cp := g
	m.grievances[g.ID] = &cp
	return &g
}

func (m *memGrievanceStore) snapshot(id string) models.Grievance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.grievances[id]
}

func (m *memGrievanceStore) Create(ctx context.Context, g *models.Grievance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	for _, existing := range m.grievances {
		if existing.TrackingID == g.TrackingID {
			return repository.ErrDuplicateTrackingID
		}
	}
	if g.ID == "" {
		m.nextID++
		g.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", m.nextID)
	}
	g.Version = 1
	cp := *g
	m.grievances[g.ID] = &cp
	return nil
}

func (m *memGrievanceStore) GetByID(ctx context.Context, id string) (*models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (m *memGrievanceStore) GetByTrackingID(ctx context.Context, trackingID string) (*models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grievances {
		if g.TrackingID == trackingID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memGrievanceStore) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []models.Grievance
	for _, g := range m.grievances {
		if filter.SubmittedBy != "" && g.SubmittedBy != filter.SubmittedBy {
			continue
		}
		if filter.Viewer != "" && g.Confidential && g.SubmittedBy != filter.Viewer && !g.IsAssignedTo(filter.Viewer) {
			continue
		}
		if filter.Status != nil && g.Status != *filter.Status {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memGrievanceStore) ListAll(ctx context.Context, filter models.GrievanceFilter, limit int) ([]models.Grievance, error) {
	items, _, err := m.List(ctx, filter)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, err
}

func (m *memGrievanceStore) Update(ctx context.Context, g *models.Grievance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.grievances[g.ID]
	if !ok || stored.Version != g.Version {
		return repository.ErrVersionConflict
	}
	stored.Status = g.Status
	stored.AssignedTo = g.AssignedTo
	stored.ResolvedAt = g.ResolvedAt
	stored.Confidential = g.Confidential
	stored.UpdatedAt = g.UpdatedAt
	stored.Version++
	g.Version++
	return nil
}

func (m *memGrievanceStore) MarkEscalated(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok || g.Escalated {
		return false, nil
	}
	g.Escalated = true
	g.EscalatedAt = &at
	g.UpdatedAt = at
	g.Version++
	return true, nil
}

func (m *memGrievanceStore) ListEscalationCandidates(ctx context.Context, cursor repository.EscalationCursor) ([]models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Grievance
	for _, g := range m.grievances {
		if !g.Status.IsOpen() || g.Escalated || g.CreatedAt.After(cursor.CreatedBefore) {
			continue
		}
		if g.CreatedAt.Before(cursor.AfterCreatedAt) || (g.CreatedAt.Equal(cursor.AfterCreatedAt) && g.ID <= cursor.AfterID) {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > cursor.Limit {
		out = out[:cursor.Limit]
	}
	return out, nil
}

func (m *memGrievanceStore) AddComment(ctx context.Context, c *models.GrievanceComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grievances[c.GrievanceID]; !ok {
		return sql.ErrNoRows
	}
	m.seq++
	c.ID = fmt.Sprintf("c-%d", m.seq)
	c.Seq = m.seq
	c.CreatedAt = m.clock.Now()
	m.comments[c.GrievanceID] = append(m.comments[c.GrievanceID], *c)
	return nil
}

func (m *memGrievanceStore) ListComments(ctx context.Context, grievanceID string) ([]models.GrievanceComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GrievanceComment, len(m.comments[grievanceID]))
	copy(out, m.comments[grievanceID])
	return out, nil
}

func (m *memGrievanceStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grievances[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.grievances, id)
	delete(m.comments, id)
	return nil
}

func (m *memGrievanceStore) Stats(ctx context.Context) (*models.GrievanceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.GrievanceStats{
		ByStatus:   map[models.GrievanceStatus]int{},
		ByCategory: map[models.GrievanceCategory]int{},
		ByPriority: map[models.GrievancePriority]int{},
	}
	for _, g := range m.grievances {
		stats.Total++
		stats.ByStatus[g.Status]++
		stats.ByCategory[g.Category]++
		stats.ByPriority[g.Priority]++
		if g.Escalated {
			stats.Escalated++
		}
	}
	return stats, nil
}

type userDirectoryStub struct {
	users   map[string]*models.User
	listErr error
	asked   [][]models.UserRole
}

func newUserDirectory(users ...*models.User) *userDirectoryStub {
	d := &userDirectoryStub{users: make(map[string]*models.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *userDirectoryStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (d *userDirectoryStub) ListByRoles(ctx context.Context, roles []models.UserRole) ([]models.User, error) {
	d.asked = append(d.asked, roles)
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []models.User
	for _, u := range d.users {
		for _, r := range roles {
			if u.Role == r && u.Active {
				out = append(out, *u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (r *recordingEvents) Publish(events ...models.NotificationEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return len(events)
}

func (r *recordingEvents) ofType(t models.NotificationEventType) []models.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NotificationEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type auditRecorder struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type sequenceGenerator struct {
	ids []string
	n   int
}

func (s *sequenceGenerator) Generate(time.Time) string {
	id := s.ids[s.n%len(s.ids)]
	s.n++
	return id
}

func claimsFor(u *models.User) *models.JWTClaims {
	return &models.JWTClaims{UserID: u.ID, Role: u.Role, Email: u.Email, FullName: u.FullName}
}

func strPtr(s string) *string { return &s }
