// Package store persists the set of announcement IDs that were already
// forwarded into the pipeline, so restarts do not re-publish old news.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "awardbot/pkg/logx"
)

var ErrDisabled = errors.New("store: disabled")

// ProcessedSet is the persistence API consulted by the scanner.
type ProcessedSet interface {
	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Config selects the driver.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "file":   jsonl journal + snapshot
//
// If Driver is empty or "none", persistence is disabled and Open returns
// (nil, nil); everything found is then re-announced each run.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured set. Returns (nil, nil) when disabled.
func Open(cfg Config, log logx.Logger) (ProcessedSet, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("store: unknown driver: " + driver)
	}
}
