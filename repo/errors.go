package repo

import "errors"

// ErrNotFound is returned when a fetch matches no rows. For FetchAndUpdate
// the enclosing transaction has been rolled back and no after-commit hook
// has fired.
var ErrNotFound = errors.New("not found")
