package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/pkg/export"
	"github.com/noah-isme/smart-report-api/pkg/storage"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type weeklyDigestSource interface {
	WeeklyDigest(ctx context.Context, ref time.Time) (*dto.WeeklyDigest, bool, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	CleanupInterval time.Duration
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Digests  weeklyDigestSource
	Storage  fileStorage
	Signer   *storage.SignedURLSigner
	CSV      tableRenderer
	PDF      documentRenderer
	Logger   *zap.Logger
	Location *time.Location
	Config   ExportConfig
}

// ExportService renders weekly digests to files and hands out signed download links.
type ExportService struct {
	digests weeklyDigestSource
	storage fileStorage
	signer  *storage.SignedURLSigner
	csv     tableRenderer
	pdf     documentRenderer
	logger  *zap.Logger
	loc     *time.Location
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	csv := params.CSV
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	cfg := params.Config
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &ExportService{
		digests: params.Digests,
		storage: params.Storage,
		signer:  params.Signer,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		loc:     loc,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WeeklyExport renders the digest of the week containing date (today when empty) and stores it.
func (s *ExportService) WeeklyExport(ctx context.Context, req dto.WeeklyExportRequest) (*dto.WeeklyExport, error) {
	ref := s.now().In(s.loc)
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), s.loc)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
		}
		ref = parsed
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	digest, _, err := s.digests.WeeklyDigest(ctx, ref)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if format == ExportFormatPDF {
		payload, err = s.pdf.Render(digestDocument(digest))
	} else {
		payload, err = s.csv.Render(digestTable(digest))
	}
	if err != nil {
		s.logger.Error("render weekly export", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("weekly-%s-%s.%s", digest.WeekStart.Format("20060102"), exportID[:8], format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.logger.Error("store weekly export", zap.String("file", filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, signed, err := s.signer.Sign(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.WeeklyExport{
		ExportID:  exportID,
		Format:    format,
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: signed.ExpiresAt,
	}, nil
}

// Open verifies a download token and opens the stored file. The caller closes it.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	signed, err := s.signer.Verify(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "Download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "Invalid download link")
	}
	file, err := s.storage.Open(signed.Path)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "Export no longer available")
	}
	return file, filepath.Base(signed.Path), nil
}

// RunCleanup purges files older than the signer TTL on every tick until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Cleanup removes expired export files once.
func (s *ExportService) Cleanup() []string {
	removed, err := s.storage.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed
}

var digestHeaders = []string{"Day", "Date", "Reports", "Approved", "Flagged"}

func digestTable(digest *dto.WeeklyDigest) export.Table {
	rows := make([][]string, 0, len(digest.DailyBreakdown)+1)
	var reports, approved, flagged int
	for _, day := range digest.DailyBreakdown {
		rows = append(rows, []string{
			day.Day,
			day.Date,
			strconv.Itoa(day.Reports),
			strconv.Itoa(day.Approved),
			strconv.Itoa(day.Flagged),
		})
		reports += day.Reports
		approved += day.Approved
		flagged += day.Flagged
	}
	rows = append(rows, []string{"Total", digest.DateRange, strconv.Itoa(reports), strconv.Itoa(approved), strconv.Itoa(flagged)})
	return export.Table{Headers: digestHeaders, Rows: rows}
}

func digestDocument(digest *dto.WeeklyDigest) export.Document {
	table := digestTable(digest)
	performers := export.Table{Headers: []string{"Name", "Class", "Reports", "Completion"}}
	for _, p := range digest.TopPerformers {
		performers.Rows = append(performers.Rows, []string{p.Name, p.Class, strconv.Itoa(p.Reports), strconv.Itoa(p.Completion) + "%"})
	}
	stats := digest.WeeklyStats
	doc := export.Document{
		Title:    "Weekly Inspection Digest",
		Subtitle: digest.DateRange,
		Sections: []export.Section{
			{
				Heading: "Summary",
				Fields: []export.Field{
					{Label: "Total reports", Value: strconv.Itoa(stats.TotalReports)},
					{Label: "Representatives", Value: strconv.Itoa(stats.TotalRepresentatives)},
					{Label: "Flagged items", Value: strconv.Itoa(stats.FlaggedItems)},
					{Label: "Resolved issues", Value: strconv.Itoa(stats.ResolvedIssues)},
					{Label: "Trend", Value: strconv.FormatFloat(stats.Trend, 'f', 1, 64) + "%"},
				},
			},
			{Heading: "Daily breakdown", Table: &table},
		},
	}
	if len(performers.Rows) > 0 {
		doc.Sections = append(doc.Sections, export.Section{Heading: "Top performers", Table: &performers})
	}
	return doc
}
