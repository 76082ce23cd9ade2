package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
)

var snapshotHeaders = []string{"Date", "StudentID", "Name", "Email", "Status", "Timestamp"}

type snapshotStore interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
	List() ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// SnapshotConfig controls ledger archiving before a wipe.
type SnapshotConfig struct {
	Cohort    string
	Retention time.Duration
}

// SnapshotService writes the full ledger to a CSV file so a reset never loses history
// outright. Records for students no longer on the roster are kept with empty names.
type SnapshotService struct {
	roster rosterReader
	ledger ledgerReader
	store  snapshotStore
	csv    csvRenderer
	policy *clock.Policy
	cfg    SnapshotConfig
	logger *zap.Logger
}

// NewSnapshotService constructs the service.
func NewSnapshotService(roster rosterReader, ledger ledgerReader, store snapshotStore, policy *clock.Policy, cfg SnapshotConfig, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		roster: roster,
		ledger: ledger,
		store:  store,
		csv:    export.NewCSVExporter(),
		policy: policy,
		cfg:    cfg,
		logger: logger,
	}
}

// Snapshot archives every ledger record and prunes archives past the retention window.
// An empty ledger writes nothing and returns an empty name.
func (s *SnapshotService) Snapshot(ctx context.Context) (string, error) {
	records, err := s.ledger.List(ctx, repository.AttendanceFilter{})
	if err != nil {
		return "", appErrors.Storage(err, "failed to read attendance ledger")
	}
	if len(records) == 0 {
		s.logger.Info("ledger empty, snapshot skipped")
		return "", nil
	}
	students, err := s.roster.ListStudents(ctx, s.cfg.Cohort)
	if err != nil {
		return "", appErrors.Storage(err, "failed to read roster")
	}
	byID := make(map[string]models.RosterStudent, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	dataset := export.Dataset{Headers: snapshotHeaders, Rows: make([]map[string]string, 0, len(records))}
	for _, r := range records {
		st := byID[r.StudentID]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":      r.Day,
			"StudentID": r.StudentID,
			"Name":      st.Name,
			"Email":     st.Email,
			"Status":    string(r.Status),
			"Timestamp": r.Timestamp.In(s.policy.Location()).Format(time.RFC3339),
		})
	}
	body, err := s.csv.Render(dataset)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render snapshot")
	}

	now := s.policy.Now().In(s.policy.Location())
	name := fmt.Sprintf("%s/attendance_%s_%s.csv", now.Format("2006-01"), sanitizeFilename(s.cfg.Cohort), now.Format("20060102-150405"))
	if _, err := s.store.Save(name, body); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write snapshot")
	}
	s.logger.Info("ledger snapshot written", zap.String("file", name), zap.Int("records", len(records)))

	if s.cfg.Retention > 0 {
		if deleted, err := s.store.CleanupOlderThan(s.cfg.Retention); err != nil {
			s.logger.Warn("failed to prune snapshots", zap.Error(err))
		} else if len(deleted) > 0 {
			s.logger.Info("old snapshots pruned", zap.Strings("files", deleted))
		}
	}
	if retained, err := s.store.List(); err != nil {
		s.logger.Warn("failed to list snapshots", zap.Error(err))
	} else if len(retained) > 0 {
		s.logger.Info("snapshot archive",
			zap.Int("retained", len(retained)),
			zap.String("oldest", retained[0]),
		)
	}
	return name, nil
}
