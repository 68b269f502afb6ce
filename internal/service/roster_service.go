package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
	"github.com/noah-isme/content-admin-api/pkg/export"
)

type rosterSource interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]dto.AssignmentView, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var rosterHeaders = []string{"Path", "Kind", "Target ID", "Role", "Assignee", "Name", "Position", "Assigned At"}

// RosterExport is a rendered assignment roster ready to be served.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// RosterService renders the current assignments as a downloadable table.
type RosterService struct {
	assignments rosterSource
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewRosterService constructs a RosterService. Nil renderers fall back to the pkg/export defaults.
func NewRosterService(assignments rosterSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &RosterService{
		assignments: assignments,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Export lists assignments matching filter and renders them in format.
// Rows are ordered by path, then role.
func (s *RosterService) Export(ctx context.Context, filter models.AssignmentFilter, format export.Format) (*RosterExport, error) {
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	views, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := rosterDataset(views)

	var body []byte
	switch format {
	case export.FormatPDF:
		body, err = s.pdf.Render(dataset, "Assignment roster")
	default:
		body, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("assignment roster exported", zap.String("format", string(format)), zap.Int("rows", len(views)))
	return &RosterExport{
		Filename:    fmt.Sprintf("assignments_%s.%s", s.now().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(views),
	}, nil
}

func rosterDataset(views []dto.AssignmentView) export.Dataset {
	sorted := make([]dto.AssignmentView, len(views))
	copy(sorted, views)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TargetPath != sorted[j].TargetPath {
			return sorted[i].TargetPath < sorted[j].TargetPath
		}
		return sorted[i].Role < sorted[j].Role
	})

	rows := make([]map[string]string, 0, len(sorted))
	for _, v := range sorted {
		path := v.TargetPath
		if strings.TrimSpace(path) == "" {
			path = v.TargetID
		}
		rows = append(rows, map[string]string{
			"Path":        path,
			"Kind":        string(v.TargetKind),
			"Target ID":   v.TargetID,
			"Role":        string(v.Role),
			"Assignee":    v.AssigneeUserID,
			"Name":        deref(v.AssigneeName),
			"Position":    deref(v.AssigneePosition),
			"Assigned At": v.AssignedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
