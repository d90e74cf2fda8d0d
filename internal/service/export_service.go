package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/dto"
	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
	"github.com/noah-isme/cms-timetable/pkg/export"
	"github.com/noah-isme/cms-timetable/pkg/storage"
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type calendarRenderer interface {
	ICS(view *dto.TimetableView, weeks int) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	// CalendarWeeks is the length of exported iCalendar feeds.
	CalendarWeeks int
}

// ExportService renders timetables into downloadable files behind signed links.
// A nil *ExportService reports the feature as disabled.
type ExportService struct {
	storage  fileStorage
	signer   *storage.SignedURLSigner
	csv      datasetRenderer
	pdf      datasetRenderer
	calendar calendarRenderer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// pkg/export defaults.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, calendar calendarRenderer, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		storage:  store,
		signer:   signer,
		csv:      csv,
		pdf:      pdf,
		calendar: calendar,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders view in format, stores the file and returns a signed link.
func (s *ExportService) Generate(ctx context.Context, view *dto.TimetableView, format dto.ExportFormat) (*dto.ExportResponse, error) {
	if s == nil {
		return nil, errExportsDisabled()
	}
	if view == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable is required")
	}

	var (
		payload []byte
		err     error
	)
	switch format {
	case dto.ExportCSV:
		payload, err = s.csv.Render(TimetableDataset(view))
	case dto.ExportPDF:
		payload, err = s.pdf.Render(TimetableDataset(view))
	case dto.ExportICS:
		if s.calendar == nil {
			return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "calendar export is not configured")
		}
		payload, err = s.calendar.ICS(view, s.cfg.CalendarWeeks)
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	name := fmt.Sprintf("timetable/%d/%s.%s", view.Year, id, format)
	relPath, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, grant, err := s.signer.Generate(id, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	s.logger.Info("timetable export generated",
		zap.String("export_id", id),
		zap.String("format", string(format)),
		zap.Int("year", view.Year),
		zap.Int("bytes", len(payload)),
	)
	return &dto.ExportResponse{
		ID:        id,
		Format:    format,
		URL:       fmt.Sprintf("%s/export/%s", s.cfg.APIPrefix, token),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Open validates a download token and opens the file it grants.
func (s *ExportService) Open(token string) (*os.File, storage.Grant, error) {
	if s == nil {
		return nil, storage.Grant{}, errExportsDisabled()
	}
	grant, err := s.signer.Parse(token, false)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, storage.Grant{}, appErrors.WrapAs(err, appErrors.ErrExportExpired, "")
	case err != nil:
		return nil, storage.Grant{}, appErrors.WrapAs(err, appErrors.ErrForbidden, "invalid download token")
	}

	file, err := s.storage.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.Grant{}, appErrors.WrapAs(err, appErrors.ErrExportExpired, "export file is no longer available")
		}
		return nil, storage.Grant{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return file, grant, nil
}

// Cleanup removes stored exports whose links have expired.
func (s *ExportService) Cleanup() ([]string, error) {
	if s == nil {
		return nil, nil
	}
	removed, err := s.storage.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func errExportsDisabled() error {
	return appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled")
}

// ContentType returns the MIME type of an export file name.
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, "."+string(dto.ExportCSV)):
		return "text/csv; charset=utf-8"
	case strings.HasSuffix(name, "."+string(dto.ExportPDF)):
		return "application/pdf"
	case strings.HasSuffix(name, "."+string(dto.ExportICS)):
		return "text/calendar; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// TimetableDataset flattens view into one row per scheduled event. DIFFERENT
// slots yield a row for each week.
func TimetableDataset(view *dto.TimetableView) export.Dataset {
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Timetable %d (week %s at %s)", view.Year, view.Week.WeekType, view.FetchedAt.UTC().Format(dateLayout)),
		Headers: []string{"Day", "Period", "Start", "End", "Week", "Type", "Name", "Room"},
		Rows:    [][]string{},
	}
	row := func(day models.Weekday, period int, slot models.TimeSlot, week string, event models.Event) []string {
		return []string{
			day.Day.String(),
			fmt.Sprintf("%d", period+1),
			slot.Start.String(),
			slot.End.String(),
			week,
			string(event.Type),
			event.Name,
			event.Room,
		}
	}
	for _, day := range view.Week.Days {
		for p, slot := range day.Slots {
			switch slot.Kind {
			case models.SlotKindSame:
				dataset.Rows = append(dataset.Rows, row(day, p, slot, "A/B", *slot.Event))
			case models.SlotKindDifferent:
				dataset.Rows = append(dataset.Rows, row(day, p, slot, string(models.WeekTypeA), *slot.WeekA))
				dataset.Rows = append(dataset.Rows, row(day, p, slot, string(models.WeekTypeB), *slot.WeekB))
			}
		}
	}
	return dataset
}
