package sqlblob

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

const testBase = "http://localhost:8080/api/markbook/blob"

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable (cgo disabled?): %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	s, err := NewWithDB(logger.Nop(), db, testBase)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.Put(ctx, "markbook-data/a.json", []byte(`{"a":1}`), "application/json")
	if err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if first.URL != testBase+"/markbook-data/a.json" {
		t.Fatalf("URL: want=%q got=%q", testBase+"/markbook-data/a.json", first.URL)
	}
	if _, err := s.Put(ctx, "markbook-data/b.json", []byte(`{"b":2}`), "application/json"); err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if _, err := s.Put(ctx, "markbook_data/x.json", []byte(`{}`), "application/json"); err != nil {
		t.Fatalf("Put underscore: %v", err)
	}

	res, err := s.List(ctx, blob.ListOptions{Prefix: "markbook-data/", Limit: 100})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Objects) != 2 {
		t.Fatalf("List count: want=2 got=%d", len(res.Objects))
	}
	if res.Objects[0].Pathname != "markbook-data/b.json" {
		t.Fatalf("List order: want newest first got=%q", res.Objects[0].Pathname)
	}

	res, err = s.List(ctx, blob.ListOptions{Prefix: "markbook-data/", Limit: 1})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(res.Objects) != 1 || !res.HasMore {
		t.Fatalf("List limit: want 1 object with more got=%d hasMore=%v", len(res.Objects), res.HasMore)
	}

	body, err := s.Get(ctx, first.DownloadURL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"a":1}` {
		t.Fatalf("Get body: want=%q got=%q", `{"a":1}`, body)
	}

	if err := s.Delete(ctx, first.URL); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, first.URL); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("second Delete: want ErrNotFound got=%v", err)
	}
	if _, err := s.Get(ctx, "https://elsewhere.example.com/a.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("foreign locator: want ErrNotFound got=%v", err)
	}
}

const indentedSnapshot = "{\n  \"weeks\": [\n    \"Week 4/3\"\n  ],\n  \"students\": [],\n  \"exportDate\": \"2024-03-04T10:00:00.000Z\"\n}"

func assertBodyVerbatim(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	obj, err := s.Put(ctx, "markbook-data/verbatim.json", []byte(indentedSnapshot), "application/json")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	body, err := s.Get(ctx, obj.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != indentedSnapshot {
		t.Fatalf("Get body: want=%q got=%q", indentedSnapshot, body)
	}
	if obj.Size != int64(len(body)) {
		t.Fatalf("size: want=%d got=%d", len(body), obj.Size)
	}
}

func TestSQLStoreKeepsBodyVerbatim(t *testing.T) {
	s := newSQLiteStore(t)
	assertBodyVerbatim(t, s)

	cols, err := s.db.Migrator().ColumnTypes(&SnapshotBlob{})
	if err != nil {
		t.Fatalf("ColumnTypes: %v", err)
	}
	for _, c := range cols {
		if c.Name() == "body" && !strings.EqualFold(c.DatabaseTypeName(), "json") {
			t.Fatalf("body column type: want=json got=%q", c.DatabaseTypeName())
		}
	}
}

// Runs against a real postgres when MARKBOOK_TEST_POSTGRES_DSN is set.
func TestPostgresStoreKeepsBodyVerbatim(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("MARKBOOK_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("MARKBOOK_TEST_POSTGRES_DSN not set")
	}
	s, err := New(logger.Nop(), Config{Dialect: DialectPostgres, DSN: dsn, PublicBaseURL: testBase})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Exec("DELETE FROM markbook_snapshot_blob WHERE pathname = ?", "markbook-data/verbatim.json").Error
		_ = s.Close()
	})
	assertBodyVerbatim(t, s)
}
