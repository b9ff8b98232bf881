package repository

import "errors"

// ErrNotFound is returned when a record does not exist (or has expired).
var ErrNotFound = errors.New("record not found")
