package runfile

import (
	"context"
	"time"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

type queryTimingKey struct{}

// queryHooks logs slow writes to the run file. Most queries here are
// batched inserts issued by the serialiser on its own goroutine, so a
// query that takes longer than a few milliseconds is a sign the disk
// can't keep up with the hit rate.
type queryHooks struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if start, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		if d := time.Since(start); d > 50*time.Millisecond {
			daqlog.Warnf("runfile: slow query (%s): %s", d, query)
		}
	}
	return ctx, nil
}
