package index

import "errors"

// Sentinel errors for index operations.
var (
	ErrKeyNotFound = errors.New("index: key not found")
	ErrNotBuilt    = errors.New("index: not built")
)

// Op constants map to index command names for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpSearch      = "FT.SEARCH"
	OpUpsert      = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"
	OpPing        = "PING"
	OpMeta        = "HGETALL"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
