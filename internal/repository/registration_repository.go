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

// RegistrationRepository is the authoritative ledger of class registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CountByClass returns the number of registrations held against a class.
func (r *RegistrationRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_registrations WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// Exists reports whether the member already holds a registration for the class.
func (r *RegistrationRepository) Exists(ctx context.Context, classID, memberID string) (bool, error) {
	const query = `SELECT 1 FROM class_registrations WHERE class_id = $1 AND member_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, memberID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registration: %w", err)
	}
	return true, nil
}

// ListRoster returns the registrations for a class joined with member details,
// ordered by registration time.
func (r *RegistrationRepository) ListRoster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT r.id AS registration_id, u.email AS member_email, u.full_name AS member_name, r.created_at AS registered_at
        FROM class_registrations r
        JOIN users u ON u.id = r.member_id
        WHERE r.class_id = $1
        ORDER BY r.created_at ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return roster, nil
}

// Admit inserts a registration while enforcing the capacity and uniqueness
// invariants. The whole decision runs in one transaction: the class row is
// locked with SELECT ... FOR UPDATE, so concurrent admissions for the same
// class serialise at the storage layer and re-validate the count under the
// lock. Admissions for different classes lock different rows and do not
// contend.
//
// Returns ErrClassNotFound, ErrAlreadyRegistered or ErrClassFull; the
// (class_id, member_id) unique index backstops uniqueness even if a
// concurrent insert slips between the advisory check and the write.
func (r *RegistrationRepository) Admit(ctx context.Context, classID, memberID string) (*models.Registration, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin admission: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	err = tx.GetContext(ctx, &capacity,
		`SELECT capacity FROM community_classes WHERE id = $1 FOR UPDATE`, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = ErrClassNotFound
			return nil, err
		}
		return nil, fmt.Errorf("lock class row: %w", err)
	}

	var registered int
	err = tx.GetContext(ctx, &registered,
		`SELECT COUNT(*) FROM class_registrations WHERE class_id = $1`, classID)
	if err != nil {
		return nil, fmt.Errorf("count under lock: %w", err)
	}

	var duplicate int
	err = tx.GetContext(ctx, &duplicate,
		`SELECT COUNT(*) FROM class_registrations WHERE class_id = $1 AND member_id = $2`, classID, memberID)
	if err != nil {
		return nil, fmt.Errorf("duplicate check under lock: %w", err)
	}
	if duplicate > 0 {
		err = ErrAlreadyRegistered
		return nil, err
	}

	if registered >= capacity {
		err = ErrClassFull
		return nil, err
	}

	reg := &models.Registration{
		ID:        uuid.NewString(),
		ClassID:   classID,
		MemberID:  memberID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO class_registrations (id, class_id, member_id, created_at) VALUES ($1, $2, $3, $4)`,
		reg.ID, reg.ClassID, reg.MemberID, reg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrAlreadyRegistered
			return nil, err
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admission: %w", err)
	}
	return reg, nil
}
