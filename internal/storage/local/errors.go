package local

import "errors"

// ErrNotFound means the requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrInvalidName rejects collection or record names that would leave the
// store directory
var ErrInvalidName = errors.New("invalid record name")
