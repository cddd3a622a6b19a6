package repository

import "errors"

// ErrDuplicateKey is returned by every store when a unique index rejects a
// write (email or provider id already taken).
var ErrDuplicateKey = errors.New("duplicate key")
