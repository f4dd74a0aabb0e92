package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lukehurtiu/community-classes-api/internal/models"
)

// ClassRepository manages persistence for community classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.CommunityClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO community_classes (id, title, description, instructor_name, location, starts_at, capacity, created_by, created_at)
        VALUES (:id, :title, :description, :instructor_name, :location, :starts_at, :capacity, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.CommunityClass, error) {
	const query = `SELECT id, title, description, instructor_name, location, starts_at, capacity, created_by, created_at FROM community_classes WHERE id = $1`
	var class models.CommunityClass
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// List returns all classes ordered by start time ascending.
func (r *ClassRepository) List(ctx context.Context) ([]models.CommunityClass, error) {
	const query = `SELECT id, title, description, instructor_name, location, starts_at, capacity, created_by, created_at FROM community_classes ORDER BY starts_at ASC`
	var classes []models.CommunityClass
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListForMember returns all classes ordered by start time ascending, each
// annotated with its registration count and whether the given member holds a
// registration.
func (r *ClassRepository) ListForMember(ctx context.Context, memberID string) ([]models.MemberClassView, error) {
	const query = `SELECT c.id, c.title, c.description, c.instructor_name, c.location, c.starts_at, c.capacity, c.created_by, c.created_at,
        (SELECT COUNT(*) FROM class_registrations r WHERE r.class_id = c.id) AS registration_count,
        EXISTS(SELECT 1 FROM class_registrations r WHERE r.class_id = c.id AND r.member_id = $1) AS is_registered
        FROM community_classes c
        ORDER BY c.starts_at ASC`
	var views []models.MemberClassView
	if err := r.db.SelectContext(ctx, &views, query, memberID); err != nil {
		return nil, fmt.Errorf("list classes for member: %w", err)
	}
	return views, nil
}
