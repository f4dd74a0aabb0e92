package models

import "time"

// Registration is a ledger entry committing a member to a class. At most one
// registration exists per (class_id, member_id); entries are never mutated.
type Registration struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	MemberID  string    `db:"member_id" json:"member_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RosterEntry joins a registration with the member it belongs to.
type RosterEntry struct {
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	MemberEmail    string    `db:"member_email" json:"member_email"`
	MemberName     string    `db:"member_name" json:"member_name"`
	RegisteredAt   time.Time `db:"registered_at" json:"registered_at"`
}
