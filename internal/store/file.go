package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "awardbot/pkg/logx"
)

// fileSet is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.snapshot.json (periodic snapshot of the whole set)
//   - <prefix>.journal.jsonl (append-only journal since last snapshot)
//
// The journal is compacted into the snapshot every compactEvery writes.
type fileSet struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalPath  string
	journal      *os.File
	ids          map[string]int64 // unix milli of first sighting

	writes       int
	compactEvery int
}

type journalRecord struct {
	ID string `json:"id"`
	At int64  `json:"at"`
}

func openFile(cfg Config, log logx.Logger) (ProcessedSet, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store: path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileSet{
		log:          log,
		snapshotPath: prefix + ".snapshot.json",
		journalPath:  prefix + ".journal.jsonl",
		ids:          map[string]int64{},
		compactEvery: 100,
	}
	if err := s.loadSnapshot(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("processed snapshot unreadable, starting from journal", logx.Err(err))
	}
	if err := s.replayJournal(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("processed journal unreadable", logx.Err(err))
	}

	jf, err := os.OpenFile(s.journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.journal = jf
	return s, nil
}

func (s *fileSet) loadSnapshot() error {
	b, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &s.ids)
}

func (s *fileSet) replayJournal() error {
	f, err := os.Open(s.journalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec journalRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// truncated tail after a crash; keep what we have
			continue
		}
		if _, ok := s.ids[rec.ID]; !ok {
			s.ids[rec.ID] = rec.At
		}
	}
	return sc.Err()
}

func (s *fileSet) IsProcessed(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, ErrDisabled
	}
	_, ok := s.ids[id]
	return ok, nil
}

func (s *fileSet) MarkProcessed(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrDisabled
	}
	if _, ok := s.ids[id]; ok {
		return nil
	}
	rec := journalRecord{ID: id, At: time.Now().UnixMilli()}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.journal.Write(append(b, '\n')); err != nil {
		return err
	}
	s.ids[id] = rec.At

	s.writes++
	if s.writes >= s.compactEvery {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("processed set compaction failed", logx.Err(err))
		} else {
			s.writes = 0
		}
	}
	return nil
}

// compactLocked rewrites the snapshot atomically and truncates the journal.
func (s *fileSet) compactLocked() error {
	b, err := json.Marshal(s.ids)
	if err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}

	if err := s.journal.Close(); err != nil {
		return err
	}
	jf, err := os.OpenFile(s.journalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		s.journal = nil
		return err
	}
	s.journal = jf
	return nil
}

func (s *fileSet) Count(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids), nil
}

func (s *fileSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
