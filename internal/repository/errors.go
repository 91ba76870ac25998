package repository

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
)

// wrapWriteErr maps a SQLite unique-constraint violation to
// apierror.Conflict (the engine's benign, retry-once race) and
// everything else to apierror.Internal.
func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return apierror.Conflict("conflicting write: " + err.Error())
	}
	return apierror.Internal(err)
}
