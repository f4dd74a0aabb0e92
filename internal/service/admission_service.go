package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	"github.com/lukehurtiu/community-classes-api/internal/repository"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
)

type admissionLedger interface {
	Exists(ctx context.Context, classID, memberID string) (bool, error)
	CountByClass(ctx context.Context, classID string) (int, error)
	Admit(ctx context.Context, classID, memberID string) (*models.Registration, error)
}

type admissionClassReader interface {
	FindByID(ctx context.Context, id string) (*models.CommunityClass, error)
}

type viewInvalidator interface {
	InvalidateMemberViews(ctx context.Context)
}

type admissionRecorder interface {
	RecordAdmission(outcome string)
	ObserveDBQuery(label string, duration time.Duration)
}

// Admission outcome labels for metrics.
const (
	AdmissionOutcomeAdmitted   = "admitted"
	AdmissionOutcomeDuplicate  = "already_registered"
	AdmissionOutcomeFull       = "class_full"
	AdmissionOutcomeNotFound   = "class_not_found"
	AdmissionOutcomeStoreError = "store_error"
)

// AdmissionService decides whether a registration may be admitted against a
// class's capacity. Pre-checks give fast, user-friendly rejections; the
// ledger's transactional Admit is the actual enforcement point, so the
// capacity and uniqueness invariants hold under arbitrary concurrency.
type AdmissionService struct {
	ledger  admissionLedger
	classes admissionClassReader
	views   viewInvalidator
	metrics admissionRecorder
	logger  *zap.Logger
}

// NewAdmissionService constructs AdmissionService. views and metrics are
// optional.
func NewAdmissionService(ledger admissionLedger, classes admissionClassReader, views viewInvalidator, metrics admissionRecorder, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{ledger: ledger, classes: classes, views: views, metrics: metrics, logger: logger}
}

// Admit attempts to register the member for the class.
//
// Decision sequence: class lookup, duplicate pre-check, capacity pre-check,
// then the transactional insert which re-validates both guards under a row
// lock. A uniqueness conflict raced in by a concurrent request surfaces as
// the same ALREADY_REGISTERED outcome as the pre-check. Each attempt is
// terminal; a rejection is never retried automatically.
func (s *AdmissionService) Admit(ctx context.Context, classID, memberID string) (*models.Registration, error) {
	// A missing class_id never reaches the ledger, so it is not counted as
	// an admission outcome.
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, appErrors.ErrClassNotFound) {
			s.record(AdmissionOutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrClassNotFound, "")
		}
		s.record(AdmissionOutcomeStoreError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	registered, err := s.ledger.Exists(ctx, classID, memberID)
	if err != nil {
		s.record(AdmissionOutcomeStoreError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration")
	}
	if registered {
		s.record(AdmissionOutcomeDuplicate)
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	}

	count, err := s.ledger.CountByClass(ctx, classID)
	if err != nil {
		s.record(AdmissionOutcomeStoreError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	if count >= class.Capacity {
		s.record(AdmissionOutcomeFull)
		return nil, appErrors.Clone(appErrors.ErrClassFull, "")
	}

	start := time.Now()
	reg, err := s.ledger.Admit(ctx, classID, memberID)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("registration_admit", time.Since(start))
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyRegistered):
			s.record(AdmissionOutcomeDuplicate)
			return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
		case errors.Is(err, repository.ErrClassFull):
			s.record(AdmissionOutcomeFull)
			return nil, appErrors.Clone(appErrors.ErrClassFull, "")
		case errors.Is(err, repository.ErrClassNotFound):
			s.record(AdmissionOutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrClassNotFound, "")
		}
		s.record(AdmissionOutcomeStoreError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to admit registration")
	}

	if s.views != nil {
		s.views.InvalidateMemberViews(ctx)
	}

	s.record(AdmissionOutcomeAdmitted)
	return reg, nil
}

func (s *AdmissionService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAdmission(outcome)
	}
}
