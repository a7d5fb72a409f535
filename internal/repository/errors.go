package repository

import "errors"

// ErrNotFound is returned when a record does not exist or is not visible to
// the requesting owner. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("record not found")
