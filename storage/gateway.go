// server/storage/gateway.go
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinizap/diary/server/domain"
)

const (
	DatabaseName   = "digitalDiary"
	CollectionName = "memories"
)

// Gateway is the persistence boundary for memories. Every method performs a
// single store operation on a connection it acquires and releases itself.
type Gateway interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, m domain.Memory) (string, error)
	List(ctx context.Context) ([]domain.Memory, error)
	Update(ctx context.Context, id, title, content string) (UpdateResult, error)
	Delete(ctx context.Context, id string) (DeleteResult, error)
	Close(ctx context.Context) error
}

// DeleteResult reports how many records a delete removed.
type DeleteResult struct {
	DeletedCount int64
}

// Deleted is true when exactly one record was removed.
func (r DeleteResult) Deleted() bool { return r.DeletedCount == 1 }

// UpdateResult reports how many records an update matched.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

func (r UpdateResult) Matched() bool { return r.MatchedCount > 0 }

type options struct {
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a gateway.
type Option func(*options)

// WithClock replaces the wall clock used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open connects to the store named by uri and verifies it answers a ping.
// The scheme selects the backend: mongodb, mongodb+srv, postgres, postgresql
// or sqlite.
func Open(ctx context.Context, uri string, opts ...Option) (Gateway, error) {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("database uri %q has no scheme", redact(uri))
	}

	var (
		g   Gateway
		err error
	)
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		g, err = OpenMongo(ctx, uri, opts...)
	case "postgres", "postgresql":
		g, err = OpenPostgres(ctx, uri, opts...)
	case "sqlite":
		g, err = OpenSQLite(ctx, strings.TrimPrefix(uri, scheme+"://"), opts...)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// stamp fills in the creation timestamps for a new record, truncated to the
// store's precision. createdAt is kept when supplied; updatedAt is never
// earlier than createdAt.
func stamp(m domain.Memory, now time.Time, precision time.Duration) domain.Memory {
	now = now.UTC().Truncate(precision)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	} else {
		m.CreatedAt = m.CreatedAt.UTC().Truncate(precision)
	}
	m.UpdatedAt = now
	if m.UpdatedAt.Before(m.CreatedAt) {
		m.UpdatedAt = m.CreatedAt
	}
	return m
}

func connErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrConnection, err)
}

// redact hides the password component of a connection string for logs.
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	creds, host := rest[:at], rest[at+1:]
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return uri
	}
	return scheme + "://" + user + ":xxxxx@" + host
}
