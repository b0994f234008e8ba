// server/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vinizap/diary/server/domain"
)

const (
	pgInsertMemory = `INSERT INTO memories (id, title, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`

	pgListMemories = `SELECT id::text, title, content, created_at, updated_at
FROM memories
ORDER BY created_at DESC, seq DESC`

	pgUpdateMemory = `UPDATE memories
SET title = $2, content = $3, updated_at = GREATEST($4, updated_at + interval '1 microsecond')
WHERE id = $1`

	pgDeleteMemory = `DELETE FROM memories WHERE id = $1`
)

type PostgresGateway struct {
	pool *pgxpool.Pool
	opts options
}

// OpenPostgres creates the connection pool, pings the server and provisions
// the memories table.
func OpenPostgres(ctx context.Context, uri string, opts ...Option) (*PostgresGateway, error) {
	o := buildOptions(opts)

	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("parse postgres uri: %w", err)
	}

	g := &PostgresGateway{pool: pool, opts: o}
	if err := g.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := provision(db, "postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	o.logger.Info().Str("uri", redact(uri)).Msg("connected to postgres")
	return g, nil
}

// acquire checks a connection out of the pool for the duration of fn and
// always returns it.
func (g *PostgresGateway) acquire(ctx context.Context, op string, fn func(*pgxpool.Conn) error) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return classifyPostgres(op, err)
	}
	defer conn.Release()

	if err := fn(conn); err != nil {
		return classifyPostgres(op, err)
	}
	return nil
}

func (g *PostgresGateway) Ping(ctx context.Context) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return connErr("ping postgres", err)
	}
	defer conn.Release()

	if err := conn.Ping(ctx); err != nil {
		return connErr("ping postgres", err)
	}
	return nil
}

func (g *PostgresGateway) Insert(ctx context.Context, m domain.Memory) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	m = stamp(m, g.opts.now(), time.Microsecond)
	id := uuid.New()

	err := g.acquire(ctx, "insert memory", func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, pgInsertMemory, id, m.Title, m.Content, m.CreatedAt, m.UpdatedAt)
		return err
	})
	if err != nil {
		return "", err
	}

	g.opts.logger.Debug().Str("id", id.String()).Msg("memory inserted")
	return id.String(), nil
}

func (g *PostgresGateway) List(ctx context.Context) ([]domain.Memory, error) {
	var memories []domain.Memory
	err := g.acquire(ctx, "list memories", func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, pgListMemories)
		if err != nil {
			return err
		}
		memories, err = pgx.CollectRows(rows, scanPostgresMemory)
		return err
	})
	if err != nil {
		return nil, err
	}
	if memories == nil {
		memories = []domain.Memory{}
	}
	return memories, nil
}

func (g *PostgresGateway) Update(ctx context.Context, id, title, content string) (UpdateResult, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := (domain.Memory{Title: title, Content: content}).Validate(); err != nil {
		return UpdateResult{}, err
	}
	now := g.opts.now().UTC().Truncate(time.Microsecond)

	var result UpdateResult
	err = g.acquire(ctx, "update memory", func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, pgUpdateMemory, uid, title, content, now)
		if err != nil {
			return err
		}
		result = UpdateResult{MatchedCount: tag.RowsAffected(), ModifiedCount: tag.RowsAffected()}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

func (g *PostgresGateway) Delete(ctx context.Context, id string) (DeleteResult, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return DeleteResult{}, err
	}

	var result DeleteResult
	err = g.acquire(ctx, "delete memory", func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, pgDeleteMemory, uid)
		if err != nil {
			return err
		}
		result.DeletedCount = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if !result.Deleted() {
		g.opts.logger.Debug().Str("id", id).Msg("no memory found to delete")
	}
	return result, nil
}

func (g *PostgresGateway) Close(context.Context) error {
	g.pool.Close()
	return nil
}

func scanPostgresMemory(row pgx.CollectableRow) (domain.Memory, error) {
	var m domain.Memory
	if err := row.Scan(&m.ID, &m.Title, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Memory{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func classifyPostgres(op string, err error) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return connErr(op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsOperatorIntervention(pgErr.Code)) {
		return connErr(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseUUID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, &domain.InvalidIDError{ID: id, Err: err}
	}
	return uid, nil
}
