package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vinizap/diary/server/domain"
)

func TestPostgresGateway(t *testing.T) {
	uri := os.Getenv("DIARY_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("DIARY_TEST_POSTGRES_URI not set")
	}

	runGatewaySuite(t, gatewayHarness{
		open: func(t *testing.T, clock *fakeClock) Gateway {
			t.Helper()
			ctx := context.Background()
			g, err := OpenPostgres(ctx, uri, WithClock(clock.Now))
			if err != nil {
				t.Fatalf("OpenPostgres: %v", err)
			}
			if _, err := g.pool.Exec(ctx, "TRUNCATE memories"); err != nil {
				t.Fatalf("truncate: %v", err)
			}
			t.Cleanup(func() { g.Close(ctx) })
			return g
		},
		absentID:    uuid.NewString,
		malformedID: "42",
	})
}

func TestClassifyPostgres(t *testing.T) {
	tests := []struct {
		name string
		err  error
		conn bool
	}{
		{"admin shutdown", &pgconn.PgError{Code: pgerrcode.AdminShutdown}, true},
		{"connection failure", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyPostgres("update memory", fmt.Errorf("exec: %w", tt.err))
			if got := errors.Is(err, domain.ErrConnection); got != tt.conn {
				t.Fatalf("expected ErrConnection=%v, got %v (%v)", tt.conn, got, err)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected cause to be preserved, got %v", err)
			}
		})
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	got, err := parseUUID(id.String())
	if err != nil {
		t.Fatalf("parseUUID: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	if _, err := parseUUID("65f1c2"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
