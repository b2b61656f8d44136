package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/grievance-api/internal/models"
)

func sampleGrievance(confidential bool) *models.Grievance {
	assignee := "staff-1"
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	return &models.Grievance{
		ID:           "g-1",
		TrackingID:   "GRV-2025-000123",
		Title:        "WiFi broken in library",
		Description:  "the wifi has been down for 3 days",
		Category:     models.CategoryTechnical,
		Priority:     models.PriorityUrgent,
		Status:       models.StatusInProgress,
		SubmittedBy:  "student-1",
		AssignedTo:   &assignee,
		Confidential: confidential,
		CreatedAt:    now,
		UpdatedAt:    now,
		Comments: []models.GrievanceComment{
			{ID: "c1", AuthorID: "staff-1", Body: "looking into it", CreatedAt: now},
		},
	}
}

func TestNewGrievanceViewAnonymous(t *testing.T) {
	view := NewGrievanceView(sampleGrievance(false), false)
	assert.Equal(t, "the wifi has been down for 3 days", view.Description)
	assert.Empty(t, view.SubmittedBy)
	assert.Empty(t, view.AssignedTo)
	assert.Len(t, view.Comments, 1)
	assert.Empty(t, view.Comments[0].AuthorID)
}

func TestNewGrievanceViewConfidentialAnonymous(t *testing.T) {
	view := NewGrievanceView(sampleGrievance(true), false)
	assert.Empty(t, view.Description)
	assert.Nil(t, view.Comments)
	assert.Equal(t, models.StatusInProgress, view.Status)
	assert.True(t, view.Confidential)
}

func TestNewGrievanceViewFull(t *testing.T) {
	view := NewGrievanceView(sampleGrievance(true), true)
	assert.Equal(t, "student-1", view.SubmittedBy)
	assert.Equal(t, "staff-1", view.AssignedTo)
	assert.Equal(t, "staff-1", view.Comments[0].AuthorID)
}
