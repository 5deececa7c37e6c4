package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Gorm {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	return NewGorm(db)
}

func TestGormLoadSaveDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	e := &Evaluation{
		Title:          "course feedback",
		OwnerID:        "owner-1",
		StartDate:      &start,
		ReminderDays:   3,
		ResultsSharing: SharingVisible,
		TemplateID:     1,
	}
	if err := s.Save(ctx, e); err != nil {
		t.Fatalf("save: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("save must assign an id")
	}

	got, ok, err := s.Load(ctx, e.ID)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Title != "course feedback" || got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Fatalf("load mismatch: %+v", got)
	}

	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := s.Load(ctx, e.ID); err != nil || ok {
		t.Fatalf("tombstoned evaluation must be absent: ok=%v err=%v", ok, err)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("all must skip tombstones, got %d", len(all))
	}
}

func TestGormLoadAbsent(t *testing.T) {
	s := newTestStore(t)
	if _, ok, err := s.Load(context.Background(), 999); err != nil || ok {
		t.Fatalf("absent load: ok=%v err=%v", ok, err)
	}
	if err := s.Delete(context.Background(), 999); err != nil {
		t.Fatalf("absent delete must be a no-op: %v", err)
	}
}

func TestCachedStoreInvalidation(t *testing.T) {
	inner := NewInMemory()
	c := NewCached(inner)
	ctx := context.Background()

	start := time.Now()
	e := &Evaluation{Title: "v1", StartDate: &start, TemplateID: 1}
	if err := c.Save(ctx, e); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := c.Load(ctx, e.ID)
	if err != nil || !ok || got.Title != "v1" {
		t.Fatalf("load: %+v ok=%v err=%v", got, ok, err)
	}

	// Mutating the returned copy must not leak into the cache.
	got.Title = "mutated"
	again, _, _ := c.Load(ctx, e.ID)
	if again.Title != "v1" {
		t.Fatalf("cache leaked a caller mutation: %q", again.Title)
	}

	e.Title = "v2"
	if err := c.Save(ctx, e); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	got, _, _ = c.Load(ctx, e.ID)
	if got.Title != "v2" {
		t.Fatalf("stale cache after save: %q", got.Title)
	}

	if err := c.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Load(ctx, e.ID); ok {
		t.Fatal("deleted evaluation still loadable")
	}
}
