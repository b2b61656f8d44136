package wire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/config"
)

func TestEscalationConfigFromEnvironment(t *testing.T) {
	g := config.GrievanceConfig{
		UrgentThreshold:        4 * time.Hour,
		HighThreshold:          24 * time.Hour,
		MediumThreshold:        72 * time.Hour,
		LowThreshold:           0,
		DefaultRecipients:      []string{"admin", "janitor"},
		HighPriorityRecipients: []string{"admin", "super_admin"},
		DefaultChatChannel:     "-100123",
	}

	cfg := EscalationConfig(g)

	assert.Equal(t, 4*time.Hour, cfg.Thresholds[models.PriorityUrgent])
	assert.Equal(t, 24*time.Hour, cfg.Thresholds[models.PriorityHigh])
	_, hasLow := cfg.Thresholds[models.PriorityLow]
	assert.False(t, hasLow, "zero thresholds fall back to service defaults")
	assert.Equal(t, []models.UserRole{models.RoleAdmin}, cfg.DefaultRecipients)
	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}, cfg.HighPriorityRecipients)
	assert.Equal(t, "-100123", cfg.DefaultChatChannel)
}

func TestNewClassifierWithoutRemote(t *testing.T) {
	svc, err := NewClassifier(config.ClassifierConfig{Timeout: time.Second, SafetyFailOpen: true}, nil, nil)
	require.NoError(t, err)

	result := svc.Classify(context.Background(), "Projector broken", "the projector in room 101 is broken")
	assert.Equal(t, models.ClassifiedByKeyword, result.Source)
}

func TestNewClassifierRejectsMissingLexicon(t *testing.T) {
	_, err := NewClassifier(config.ClassifierConfig{LexiconPath: "/nonexistent/lexicon.yaml"}, nil, nil)
	assert.Error(t, err)
}
