package store

import (
	"context"
	"path/filepath"
	"testing"

	logx "awardbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none"} {
		set, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if set != nil {
			t.Fatalf("driver %q: expected nil set", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func roundTrip(t *testing.T, open func(t *testing.T) ProcessedSet) {
	t.Helper()
	ctx := context.Background()
	set := open(t)
	defer set.Close()

	const id = "award_20260314_0a1b2c3d"

	if ok, err := set.IsProcessed(ctx, id); err != nil || ok {
		t.Fatalf("fresh id reported processed: ok=%v err=%v", ok, err)
	}
	if err := set.MarkProcessed(ctx, id); err != nil {
		t.Fatal(err)
	}
	// second mark is a no-op
	if err := set.MarkProcessed(ctx, id); err != nil {
		t.Fatal(err)
	}
	if ok, err := set.IsProcessed(ctx, id); err != nil || !ok {
		t.Fatalf("marked id not reported processed: ok=%v err=%v", ok, err)
	}
	if n, err := set.Count(ctx); err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "processed.json")
	roundTrip(t, func(t *testing.T) ProcessedSet {
		set, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
		if err != nil {
			t.Fatal(err)
		}
		return set
	})
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "processed.db")
	roundTrip(t, func(t *testing.T) ProcessedSet {
		set, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
		if err != nil {
			t.Fatal(err)
		}
		return set
	})
}

func TestFileSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed.json")

	set, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ids := []string{"award_20260101_aaaaaaaa", "award_20260102_bbbbbbbb"}
	for _, id := range ids {
		if err := set.MarkProcessed(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := set.Close(); err != nil {
		t.Fatal(err)
	}

	set, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()
	for _, id := range ids {
		if ok, _ := set.IsProcessed(ctx, id); !ok {
			t.Fatalf("id %s lost across reopen", id)
		}
	}
}

func TestFileCompaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed.json")

	raw, err := openFile(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fs := raw.(*fileSet)
	fs.compactEvery = 3

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		if err := fs.MarkProcessed(ctx, "award_20260103_"+id); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}

	set, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()
	if n, _ := set.Count(ctx); n != len(ids) {
		t.Fatalf("count after compaction = %d, want %d", n, len(ids))
	}
}
