package models

import "time"

// CommunityClass represents a class offered to members. Records are immutable
// after creation; there is no update or delete operation.
type CommunityClass struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	InstructorName string    `db:"instructor_name" json:"instructor_name"`
	Location       string    `db:"location" json:"location"`
	StartsAt       time.Time `db:"starts_at" json:"starts_at"`
	Capacity       int       `db:"capacity" json:"capacity"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MemberClassView is a class annotated with registration state for the
// requesting member.
type MemberClassView struct {
	CommunityClass
	RegistrationCount int  `db:"registration_count" json:"registration_count"`
	IsRegistered      bool `db:"is_registered" json:"is_registered"`
}
