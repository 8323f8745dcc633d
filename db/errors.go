package db

import (
	"strings"

	"github.com/teranos/strata/errors"
)

// ErrDatabaseClosed is returned when usage is recorded after the database
// was closed, which happens when a command exits while a request is in flight.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks for ErrDatabaseClosed or the equivalent driver message
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
