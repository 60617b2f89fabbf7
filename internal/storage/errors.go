package storage

import "errors"

// ErrNotFound reports that no row matched the requested id and owner
// scope. Both the Postgres and local stores return it so callers can
// map it to a 404 without knowing which store is behind them.
var ErrNotFound = errors.New("storage: not found")
