// server/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vinizap/diary/server/domain"
)

const (
	sqliteInsertMemory = `INSERT INTO memories (id, title, content, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`

	sqliteListMemories = `SELECT id, title, content, created_at, updated_at
FROM memories
ORDER BY created_at DESC, rowid DESC`

	sqliteUpdateMemory = `UPDATE memories
SET title = ?, content = ?, updated_at = MAX(?, updated_at + 1)
WHERE id = ?`

	sqliteDeleteMemory = `DELETE FROM memories WHERE id = ?`
)

// SQLiteGateway stores memories in a single SQLite file. Timestamps are
// stored as Unix nanoseconds.
type SQLiteGateway struct {
	db   *sql.DB
	path string
	opts options
}

func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteGateway, error) {
	o := buildOptions(opts)
	if path == "" {
		return nil, errors.New("sqlite uri needs a file path")
	}
	if isMemoryPath(path) {
		return nil, fmt.Errorf("sqlite path %q is in-memory; each pooled connection would see its own empty database, use a file path", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := sqliteDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, connErr("open sqlite", err)
	}

	g := &SQLiteGateway{db: db, path: path, opts: o}
	if err := g.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	migrationDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	defer migrationDB.Close()

	if err := provision(migrationDB, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	o.logger.Info().Str("path", path).Msg("opened sqlite database")
	return g, nil
}

func isMemoryPath(path string) bool {
	name, query, _ := strings.Cut(path, "?")
	return name == ":memory:" || strings.HasPrefix(name, "file::memory:") ||
		strings.Contains("&"+query+"&", "&mode=memory&")
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// conn checks a connection out of the pool for the duration of fn and
// always returns it.
func (g *SQLiteGateway) conn(ctx context.Context, op string, fn func(*sql.Conn) error) error {
	c, err := g.db.Conn(ctx)
	if err != nil {
		return classifySQLite(op, err)
	}
	defer c.Close()

	if err := fn(c); err != nil {
		return classifySQLite(op, err)
	}
	return nil
}

func (g *SQLiteGateway) Ping(ctx context.Context) error {
	c, err := g.db.Conn(ctx)
	if err != nil {
		return connErr("ping sqlite", err)
	}
	defer c.Close()

	if err := c.PingContext(ctx); err != nil {
		return connErr("ping sqlite", err)
	}
	return nil
}

func (g *SQLiteGateway) Insert(ctx context.Context, m domain.Memory) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	m = stamp(m, g.opts.now(), time.Nanosecond)
	id := uuid.New().String()

	err := g.conn(ctx, "insert memory", func(c *sql.Conn) error {
		_, err := c.ExecContext(ctx, sqliteInsertMemory,
			id, m.Title, m.Content, m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano())
		return err
	})
	if err != nil {
		return "", err
	}

	g.opts.logger.Debug().Str("id", id).Msg("memory inserted")
	return id, nil
}

func (g *SQLiteGateway) List(ctx context.Context) ([]domain.Memory, error) {
	memories := []domain.Memory{}
	err := g.conn(ctx, "list memories", func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx, sqliteListMemories)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				m                domain.Memory
				created, updated int64
			)
			if err := rows.Scan(&m.ID, &m.Title, &m.Content, &created, &updated); err != nil {
				return err
			}
			m.CreatedAt = time.Unix(0, created).UTC()
			m.UpdatedAt = time.Unix(0, updated).UTC()
			memories = append(memories, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

func (g *SQLiteGateway) Update(ctx context.Context, id, title, content string) (UpdateResult, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := (domain.Memory{Title: title, Content: content}).Validate(); err != nil {
		return UpdateResult{}, err
	}
	now := g.opts.now().UTC().UnixNano()

	var result UpdateResult
	err = g.conn(ctx, "update memory", func(c *sql.Conn) error {
		res, err := c.ExecContext(ctx, sqliteUpdateMemory, title, content, now, uid.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result = UpdateResult{MatchedCount: n, ModifiedCount: n}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

func (g *SQLiteGateway) Delete(ctx context.Context, id string) (DeleteResult, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return DeleteResult{}, err
	}

	var result DeleteResult
	err = g.conn(ctx, "delete memory", func(c *sql.Conn) error {
		res, err := c.ExecContext(ctx, sqliteDeleteMemory, uid.String())
		if err != nil {
			return err
		}
		result.DeletedCount, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if !result.Deleted() {
		g.opts.logger.Debug().Str("id", id).Msg("no memory found to delete")
	}
	return result, nil
}

func (g *SQLiteGateway) Close(context.Context) error {
	return g.db.Close()
}

func classifySQLite(op string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return connErr(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
