package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by repositories so services can translate them
// into the API error taxonomy.
var (
	// ErrClassNotFound is returned when a referenced class does not exist.
	ErrClassNotFound = errors.New("class not found")

	// ErrClassFull is returned when a class has no remaining capacity.
	ErrClassFull = errors.New("class is full")

	// ErrAlreadyRegistered is returned when a (class, member) pair already
	// holds a registration. The unique index on class_registrations is the
	// final arbiter; both the advisory check and the index violation map here.
	ErrAlreadyRegistered = errors.New("member already registered for class")

	// ErrDuplicateEmail is returned when the email unique constraint fires.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Postgres error code for unique_violation.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return false
}
