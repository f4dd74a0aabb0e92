package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
	"github.com/lukehurtiu/community-classes-api/pkg/export"
)

type rosterLedger interface {
	ListRoster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type rosterClassReader interface {
	FindByID(ctx context.Context, id string) (*models.CommunityClass, error)
}

// RosterExport is a rendered roster document.
type RosterExport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// RosterService renders class rosters for admins.
type RosterService struct {
	ledger  rosterLedger
	classes rosterClassReader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(ledger rosterLedger, classes rosterClassReader, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		ledger:  ledger,
		classes: classes,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// Export renders the roster for a class in the requested format (csv or pdf).
func (s *RosterService) Export(ctx context.Context, classID, format string) (*RosterExport, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, appErrors.ErrClassNotFound) {
			return nil, appErrors.Clone(appErrors.ErrClassNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	roster, err := s.ledger.ListRoster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	data := export.Dataset{
		Headers: []string{"Member", "Email", "Registered At"},
		Rows:    make([][]string, 0, len(roster)),
	}
	for _, entry := range roster {
		data.Rows = append(data.Rows, []string{
			entry.MemberName,
			entry.MemberEmail,
			entry.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}

	switch format {
	case "csv", "":
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &RosterExport{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("roster-%s.csv", class.ID),
		}, nil
	case "pdf":
		content, err := s.pdf.Render(data, fmt.Sprintf("Roster - %s", class.Title))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &RosterExport{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("roster-%s.pdf", class.ID),
		}, nil
	}

	return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}
