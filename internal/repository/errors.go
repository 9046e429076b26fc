package repository

import "errors"

// Sentinels translated from PostgreSQL constraint violations.
var (
	ErrDuplicateReport  = errors.New("report already submitted for this class today")
	ErrDuplicateName    = errors.New("name already in use")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrReferenced       = errors.New("row is still referenced")
	ErrUnknownReference = errors.New("referenced row does not exist")
	ErrMalformedID      = errors.New("malformed identifier")
)
