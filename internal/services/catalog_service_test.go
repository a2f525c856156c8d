package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/civregistry/registrar-backend/internal/domain"
)

func newCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("catalog_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Service{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCatalogList_SeedsDefaultsOnce(t *testing.T) {
	db := newCatalogDB(t)
	svc := NewCatalogService(db)
	ctx := context.Background()

	out, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("first list seeded %d entries; want 4", len(out))
	}

	seen := map[string]bool{}
	for _, s := range out {
		seen[s.ID] = true
		if len(s.Requirements) == 0 {
			t.Fatalf("seeded service %s has no requirements", s.ID)
		}
	}
	for _, id := range []string{"birth-cert", "marriage-cert", "no-marriage-cert", "death-reg"} {
		if !seen[id] {
			t.Fatalf("default service %s missing from %v", id, seen)
		}
	}

	// Second read sees a populated catalog and seeds nothing.
	again, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(again) != 4 {
		t.Fatalf("second list has %d entries; want 4", len(again))
	}
}

func TestCatalogCreate_TitleCasesName(t *testing.T) {
	db := newCatalogDB(t)
	svc := NewCatalogService(db)
	ctx := context.Background()

	created, err := svc.Create(ctx, "walk-in", "walk-in inquiry", []string{"Valid ID"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Walk-In Inquiry" {
		t.Fatalf("name = %q; want title case", created.Name)
	}

	if _, err := svc.Create(ctx, "x", "   ", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name: want ErrValidation, got %v", err)
	}
}

func TestCatalogGetUpdateDelete(t *testing.T) {
	db := newCatalogDB(t)
	svc := NewCatalogService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "birth-cert", "Birth Certificate", []string{"National ID"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(ctx, "birth-cert")
	if err != nil || got.Name != "Birth Certificate" {
		t.Fatalf("get: %+v err=%v", got, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("missing get: want ErrServiceNotFound, got %v", err)
	}

	upd, err := svc.Update(ctx, "birth-cert", "birth certificate (copy)", []string{"National ID", "Permanent record"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Name != "Birth Certificate (Copy)" || len(upd.Requirements) != 2 {
		t.Fatalf("update not applied: %+v", upd)
	}
	if _, err := svc.Update(ctx, "missing", "X", nil); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("missing update: want ErrServiceNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, "birth-cert"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "birth-cert"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("repeat delete: want ErrServiceNotFound, got %v", err)
	}
}
