package repository

import "errors"

// ErrClosed is returned by WriteMessage after the repository was closed, and is
// delivered to listeners registered on a closed repository.
var ErrClosed = errors.New("repository: closed")
