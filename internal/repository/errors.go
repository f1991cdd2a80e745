package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateUsername indicates a case-insensitive username collision.
	ErrDuplicateUsername = errors.New("repository: duplicate username")
	// ErrDuplicateEmail indicates a case-insensitive email collision.
	ErrDuplicateEmail = errors.New("repository: duplicate email")
	// ErrDuplicateTicket indicates a system ticket value collision.
	ErrDuplicateTicket = errors.New("repository: duplicate ticket value")
	// ErrAssociatedData indicates a delete was blocked by dependent records.
	ErrAssociatedData = errors.New("repository: associated data present")
)
