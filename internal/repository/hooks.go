package repository

import (
	"context"
	"time"

	"github.com/ccs-amsterdam/annotinder-server/pkg/log"
)

type queryTimingKey struct{}

// queryLogger implements sqlhooks.Hooks, wrapping the sql.Driver so every
// statement executed through the sqlx.DB is timed; statements slower
// than 50ms are logged as warnings and failed ones at debug level. This
// package is the sole owner of the *sqlx.DB.
type queryLogger struct{}

func (queryLogger) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (queryLogger) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if start, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			log.Warnf("repository: slow query (%s): %s", elapsed, query)
		}
	}
	return ctx, nil
}

func (queryLogger) OnError(ctx context.Context, err error, query string, args ...interface{}) error {
	log.Debugf("repository: query error: %s (%s)", err.Error(), query)
	return err
}
