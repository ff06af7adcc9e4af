// Package reference issues student-facing booking references such as
// CN-2026-000042.
package reference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxAttempts = 5

var ErrExhausted = errors.New("could not allocate a free booking reference")

type existenceChecker interface {
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// Allocator takes the numeric suffix from a per-year redis counter. Without
// redis it falls back to a random suffix. Every candidate is checked against
// the bookings table before it is handed out.
type Allocator struct {
	prefix  string
	rdb     *redis.Client
	store   existenceChecker
	now     func() time.Time
	loggerf func(format string, args ...interface{})
}

func NewAllocator(prefix string, rdb *redis.Client, store existenceChecker, loggerf func(format string, args ...interface{})) *Allocator {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Allocator{
		prefix:  strings.ToUpper(strings.TrimSpace(prefix)),
		rdb:     rdb,
		store:   store,
		now:     time.Now,
		loggerf: loggerf,
	}
}

func counterKey(year int) string {
	return fmt.Sprintf("booking:reference:%d", year)
}

func (a *Allocator) Next(ctx context.Context) (string, error) {
	year := a.now().UTC().Year()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := a.candidate(ctx, year)
		if err != nil {
			return "", err
		}
		taken, err := a.store.ReferenceExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check reference %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		a.loggerf("level=warn msg=booking reference collision reference=%s attempt=%d", candidate, attempt+1)
	}
	return "", ErrExhausted
}

func (a *Allocator) candidate(ctx context.Context, year int) (string, error) {
	if a.rdb != nil {
		n, err := a.rdb.Incr(ctx, counterKey(year)).Result()
		if err == nil {
			return fmt.Sprintf("%s-%d-%06d", a.prefix, year, n), nil
		}
		a.loggerf("level=warn msg=reference counter unavailable, using random suffix err=%v", err)
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", a.prefix, year, suffix), nil
}
