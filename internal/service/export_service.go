package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var (
	dailyHeaders  = []string{"Name", "Email", "Status", "Timestamp"}
	rosterHeaders = []string{"Name", "Email", "Role", "Class"}
)

type csvCodec interface {
	Render(data export.Dataset) ([]byte, error)
	Parse(r io.Reader) (export.Dataset, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, summary ...string) ([]byte, error)
}

type dailyProvider interface {
	Cohort() string
	Daily(ctx context.Context, day string) ([]models.DailyEntry, models.DailyStats, error)
}

type rosterLister interface {
	List(ctx context.Context) ([]models.User, error)
}

// ExportResult is a rendered file ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the daily attendance view and the roster as files, and parses
// roster uploads.
type ExportService struct {
	daily  dailyProvider
	roster rosterLister
	csv    csvCodec
	pdf    pdfRenderer
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(daily dailyProvider, roster rosterLister, loc *time.Location, logger *zap.Logger, csv csvCodec, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{daily: daily, roster: roster, csv: csv, pdf: pdf, loc: loc, logger: logger}
}

// Daily renders the roster view of day in the requested format.
func (s *ExportService) Daily(ctx context.Context, day, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	entries, stats, err := s.daily.Daily(ctx, day)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: dailyHeaders, Rows: make([]map[string]string, 0, len(entries))}
	for _, e := range entries {
		ts := "-"
		if e.Timestamp != nil {
			ts = e.Timestamp.In(s.loc).Format("15:04:05")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":      e.Student.Name,
			"Email":     e.Student.Email,
			"Status":    string(e.Status),
			"Timestamp": ts,
		})
	}

	cohort := sanitizeFilename(s.daily.Cohort())
	result := &ExportResult{Filename: fmt.Sprintf("attendance_%s_%s.%s", cohort, day, format)}
	switch format {
	case FormatCSV:
		result.ContentType = "text/csv"
		result.Body, err = s.csv.Render(dataset)
	case FormatPDF:
		result.ContentType = "application/pdf"
		result.Body, err = s.pdf.Render(dataset,
			fmt.Sprintf("Attendance %s %s", s.daily.Cohort(), day),
			fmt.Sprintf("Hadir: %d  Izin: %d  Sakit: %d  Alfa: %d  Total: %d", stats.Hadir, stats.Izin, stats.Sakit, stats.Alfa, stats.Total),
			fmt.Sprintf("Attendance rate: %s%%", stats.AttendanceRate),
		)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return result, nil
}

// Roster renders the cohort accounts as CSV.
func (s *ExportService) Roster(ctx context.Context) (*ExportResult, error) {
	users, err := s.roster.List(ctx)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(users))}
	for _, u := range users {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":  u.Name,
			"Email": u.Email,
			"Role":  string(u.Role),
			"Class": u.Cohort,
		})
	}
	body, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{Filename: "users.csv", ContentType: "text/csv", Body: body}, nil
}

// ParseRoster reads an uploaded roster CSV with name, email, role and class columns.
func (s *ExportService) ParseRoster(r io.Reader) ([]models.ImportRow, error) {
	data, err := s.csv.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Failed to parse CSV")
	}
	rows := make([]models.ImportRow, 0, len(data.Rows))
	for i, row := range data.Rows {
		rows = append(rows, models.ImportRow{
			Line:   i + 2,
			Name:   row["name"],
			Email:  row["email"],
			Role:   models.UserRole(strings.ToLower(row["role"])),
			Cohort: row["class"],
		})
	}
	return rows, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", `"`, "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
