package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
)

type classRepository interface {
	Create(ctx context.Context, class *models.CommunityClass) error
	FindByID(ctx context.Context, id string) (*models.CommunityClass, error)
	List(ctx context.Context) ([]models.CommunityClass, error)
	ListForMember(ctx context.Context, memberID string) ([]models.MemberClassView, error)
}

type classCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Cache keys for the member class view. Registration counts change for every
// member's view at once, so invalidation sweeps the whole pattern.
const (
	memberViewKeyFormat = "classes:member:%s"
	memberViewPattern   = "classes:member:*"
)

// CreateClassRequest describes the admin class-creation payload.
type CreateClassRequest struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description" validate:"required"`
	InstructorName string `json:"instructor_name" validate:"required"`
	Location       string `json:"location" validate:"required"`
	StartsAt       string `json:"starts_at" validate:"required"`
	Capacity       int    `json:"capacity" validate:"required,min=1,max=1000"`
}

// ClassService manages the class catalog.
type ClassService struct {
	repo      classRepository
	cache     classCache
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewClassService constructs ClassService. A nil cache disables the member
// view cache.
func NewClassService(repo classRepository, cache classCache, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Create validates and persists a new class definition. Classes are immutable
// once created. A starts_at in the past is accepted; only parseability is
// enforced.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest, createdBy string) (*models.CommunityClass, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.InstructorName = strings.TrimSpace(req.InstructorName)
	req.Location = strings.TrimSpace(req.Location)

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "starts_at must be an RFC3339 timestamp")
	}

	class := &models.CommunityClass{
		Title:          req.Title,
		Description:    req.Description,
		InstructorName: req.InstructorName,
		Location:       req.Location,
		StartsAt:       startsAt.UTC(),
		Capacity:       req.Capacity,
		CreatedBy:      createdBy,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.invalidateMemberViews(ctx)

	return class, nil
}

// List returns all classes ordered by start time ascending.
func (s *ClassService) List(ctx context.Context) ([]models.CommunityClass, error) {
	classes, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// FindByID loads a single class definition.
func (s *ClassService) FindByID(ctx context.Context, id string) (*models.CommunityClass, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrClassNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// ListForMember returns the annotated member view, serving from cache when
// possible. The cache is only an accelerator for reads; admission decisions
// never consult it.
func (s *ClassService) ListForMember(ctx context.Context, memberID string) ([]models.MemberClassView, error) {
	key := fmt.Sprintf(memberViewKeyFormat, memberID)

	if s.cache != nil {
		var cached []models.MemberClassView
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("member view cache read failed", zap.Error(err))
		}
	}

	views, err := s.repo.ListForMember(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, views, s.cacheTTL); err != nil {
			s.logger.Warn("member view cache write failed", zap.Error(err))
		}
	}

	return views, nil
}

// InvalidateMemberViews drops every cached member view. Called after any
// write that changes registration counts.
func (s *ClassService) InvalidateMemberViews(ctx context.Context) {
	s.invalidateMemberViews(ctx)
}

func (s *ClassService) invalidateMemberViews(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, memberViewPattern); err != nil {
		s.logger.Warn("member view cache invalidation failed", zap.Error(err))
	}
}
