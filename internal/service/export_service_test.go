package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *memGrievanceStore, *auditRecorder) {
	t.Helper()
	store := newMemGrievanceStore(newTestClock())
	resolved := testNow.Add(2 * time.Hour)
	store.put(models.Grievance{TrackingID: "GRV-2025-000001", Title: "WiFi down in library", Category: models.CategoryTechnical, Priority: models.PriorityUrgent, Status: models.StatusResolved, ResolvedAt: &resolved, CreatedAt: testNow})
	store.put(models.Grievance{TrackingID: "GRV-2025-000002", Title: "Complaint about a lecturer", Category: models.CategoryHarassment, Priority: models.PriorityHigh, Status: models.StatusSubmitted, Confidential: true, CreatedAt: testNow})

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	audit := &auditRecorder{}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(store, files, signer, audit, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	return svc, store, audit
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _, audit := newExportServiceForTest(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Format: "CSV"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Format)
	assert.Equal(t, 2, result.Rows)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))

	token := strings.TrimPrefix(result.URL, "/api/v1/export/")
	_, relPath, err := svc.ParseToken(token)
	require.NoError(t, err)

	f, contentType, err := svc.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, contentType, "text/csv")

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(body), "GRV-2025-000001")
	assert.Contains(t, string(body), confidentialTitle)
	assert.NotContains(t, string(body), "Complaint about a lecturer")
	assert.Equal(t, []string{models.AuditActionGrievanceExport}, audit.actions())
}

func TestExportServiceGeneratePDFWithFilter(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Format: "pdf", Status: "resolved"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	require.NotNil(t, store.lastFilter.Status)
	assert.Equal(t, models.StatusResolved, *store.lastFilter.Status)
}

func TestExportServiceRejectsInvalidRequests(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, dto.ExportRequest{Format: "xlsx"}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(err))

	_, err = svc.Generate(ctx, dto.ExportRequest{Format: "csv"}, &models.JWTClaims{UserID: "stf-1", Role: models.RoleStaff})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(err))

	_, _, err = svc.ParseToken("not-a-token")
	assert.Error(t, err)
}
