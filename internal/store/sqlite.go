package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	logx "awardbot/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed (
	id      TEXT PRIMARY KEY,
	seen_at TEXT NOT NULL
);
`

type sqliteSet struct {
	db  *sql.DB
	log logx.Logger
	sb  sq.StatementBuilderType
}

func openSQLite(cfg Config, log logx.Logger) (ProcessedSet, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &sqliteSet{
		db:  db,
		log: log,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func (s *sqliteSet) IsProcessed(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	q, args, err := s.sb.Select("1").From("processed").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteSet) MarkProcessed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	q, args, err := s.sb.Insert("processed").
		Columns("id", "seen_at").
		Values(id, time.Now().Format(time.RFC3339Nano)).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *sqliteSet) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	q, args, err := s.sb.Select("COUNT(*)").From("processed").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqliteSet) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
