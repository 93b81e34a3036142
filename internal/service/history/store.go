// Package history persists chat turns per (user, artifact) pair.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/model/chat"
)

//go:embed migrations
var migrations embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ErrSessionClosed is returned by a Session used after Close.
var ErrSessionClosed = errors.New("history session closed")

// Store owns the messages table.
type Store struct {
	db     *sql.DB
	driver string
	log    zerolog.Logger
}

// Open connects to the database, verifies it and applies pending migrations.
func Open(ctx context.Context, driver, dsn string, log zerolog.Logger) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	store := New(db, driver, log)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an already opened database. Callers must run Migrate themselves.
func New(db *sql.DB, driver string, log zerolog.Logger) *Store {
	return &Store{db: db, driver: driver, log: log}
}

// Migrate applies the embedded goose migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	dialect := goose.DialectSQLite3
	if s.driver == DriverPostgres {
		dialect = goose.DialectPostgres
	}

	fsys, err := fs.Sub(migrations, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("locate migrations for %s: %w", s.driver, err)
	}

	provider, err := goose.NewProvider(dialect, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	for _, r := range results {
		s.log.Info().Str("migration", r.Source.Path).Dur("duration", r.Duration).Msg("applied migration")
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session checks a dedicated connection out of the pool. The caller must
// Close it on every exit path.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire history connection: %w", err)
	}
	return &Session{conn: conn, driver: s.driver}, nil
}

// Session is a request-scoped handle on the messages table.
type Session struct {
	conn   *sql.Conn
	driver string
}

// Close returns the connection to the pool. It is safe to call twice.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// RecentHistory returns up to limit of the newest turns for the pair,
// oldest first. Turns sharing a timestamp keep insertion order.
func (s *Session) RecentHistory(ctx context.Context, userID, artifactID string, limit int) ([]chat.Turn, error) {
	if s.conn == nil {
		return nil, ErrSessionClosed
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.conn.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, artifact_id, role, content, "timestamp"
		FROM messages
		WHERE user_id = ? AND artifact_id = ?
		ORDER BY "timestamp" DESC, id DESC
		LIMIT ?`), userID, artifactID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	turns := make([]chat.Turn, 0, limit)
	for rows.Next() {
		var (
			t    chat.Turn
			role string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.ArtifactID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		t.Role = chat.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AppendTurns inserts all turns in one transaction; either every turn is
// stored or none is.
func (s *Session) AppendTurns(ctx context.Context, turns ...chat.Turn) (err error) {
	if s.conn == nil {
		return ErrSessionClosed
	}
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insert := s.rebind(`INSERT INTO messages (user_id, artifact_id, role, content) VALUES (?, ?, ?, ?)`)
	for _, t := range turns {
		if _, err = tx.ExecContext(ctx, insert, t.UserID, t.ArtifactID, string(t.Role), t.Content); err != nil {
			return fmt.Errorf("insert %s turn: %w", t.Role, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Session) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
