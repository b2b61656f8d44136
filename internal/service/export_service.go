package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/export"
	"github.com/noah-isme/grievance-api/pkg/ids"
	"github.com/noah-isme/grievance-api/pkg/storage"
)

const defaultExportRowLimit = 10000

type exportSource interface {
	ListAll(ctx context.Context, filter models.GrievanceFilter, limit int) ([]models.Grievance, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	RowLimit  int
}

// ExportService renders grievance listings to CSV or PDF files and hands out
// signed download links.
type ExportService struct {
	source    exportSource
	storage   fileStorage
	renderers map[string]renderer
	signer    *storage.SignedURLSigner
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(source exportSource, files fileStorage, signer *storage.SignedURLSigner, audit auditLogger, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = defaultExportRowLimit
	}
	return &ExportService{
		source:  source,
		storage: files,
		renderers: map[string]renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		signer:    signer,
		audit:     audit,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate renders the grievances matching req and stores the file.
func (s *ExportService) Generate(ctx context.Context, req dto.ExportRequest, actor *models.JWTClaims) (*dto.ExportResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdministrative() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can export grievances")
	}
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	filter, err := FilterFromQuery(dto.GrievanceQuery{
		Status:   req.Status,
		Category: req.Category,
		Priority: req.Priority,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		return nil, err
	}

	items, err := s.source.ListAll(ctx, filter, s.cfg.RowLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievances for export")
	}

	r := s.renderers[req.Format]
	now := s.now().UTC()
	payload, err := r.Render(grievanceDataset(items), fmt.Sprintf("Grievances as of %s", now.Format("2006-01-02 15:04 MST")))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := ids.New()
	filename := fmt.Sprintf("grievances_%s_%s.%s", now.Format("20060102_150405"), strings.ToLower(exportID), r.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	s.recordExport(ctx, actor, exportID, req, len(items))
	s.logger.Info("grievance export generated", zap.String("export_id", exportID), zap.String("format", req.Format), zap.Int("rows", len(items)))

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.ExportResponse{
		URL:       fmt.Sprintf("%s/export/%s", prefix, token),
		Format:    req.Format,
		Rows:      len(items),
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string) (exportID, relPath string, err error) {
	exportID, relPath, _, err = s.signer.Parse(token, false)
	return exportID, relPath, err
}

// Open returns a handle to the stored file and its content type.
func (s *ExportService) Open(relPath string) (*os.File, string, error) {
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", err
	}
	contentType := "application/octet-stream"
	for _, r := range s.renderers {
		if strings.HasSuffix(relPath, "."+r.Extension()) {
			contentType = r.ContentType()
		}
	}
	return f, contentType, nil
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) recordExport(ctx context.Context, actor *models.JWTClaims, exportID string, req dto.ExportRequest, rows int) {
	if s.audit == nil {
		return
	}
	newValues, _ := models.MarshalJSONB(map[string]interface{}{
		"export_id": exportID,
		"format":    req.Format,
		"status":    req.Status,
		"category":  req.Category,
		"priority":  req.Priority,
		"from":      req.From,
		"to":        req.To,
		"rows":      rows,
	})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionGrievanceExport,
		Resource:   models.AuditResourceGrievance,
		ResourceID: &exportID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "export-service",
	}); err != nil {
		s.logger.Warn("failed to record export audit", zap.Error(err))
	}
}

var exportHeaders = []string{"Tracking ID", "Title", "Category", "Priority", "Status", "Escalated", "Confidential", "Created", "Resolved"}

func grievanceDataset(items []models.Grievance) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, g := range items {
		title := g.Title
		if g.Confidential {
			title = confidentialTitle
		}
		row := map[string]string{
			"Tracking ID":  g.TrackingID,
			"Title":        title,
			"Category":     string(g.Category),
			"Priority":     string(g.Priority),
			"Status":       string(g.Status),
			"Escalated":    strconv.FormatBool(g.Escalated),
			"Confidential": strconv.FormatBool(g.Confidential),
			"Created":      g.CreatedAt.UTC().Format(time.RFC3339),
		}
		if g.ResolvedAt != nil {
			row["Resolved"] = g.ResolvedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
