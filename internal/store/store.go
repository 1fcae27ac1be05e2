package store

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned when a task or agent does not exist.
var ErrNotFound = errors.New("not found")
