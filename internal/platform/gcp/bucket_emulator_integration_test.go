package gcp

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

func TestBucketStoreEmulatorRoundTrip(t *testing.T) {
	if strings.TrimSpace(os.Getenv("MARKBOOK_RUN_GCS_EMULATOR_SMOKE")) != "true" {
		t.Skip("set MARKBOOK_RUN_GCS_EMULATOR_SMOKE=true to run against fake-gcs")
	}
	host := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	bucket := strings.TrimSpace(os.Getenv("MARKBOOK_GCS_BUCKET_NAME"))
	if host == "" || bucket == "" {
		t.Skip("STORAGE_EMULATOR_HOST and MARKBOOK_GCS_BUCKET_NAME are required")
	}

	cfg, err := ResolveObjectStorageConfig("gcs_emulator", host)
	if err != nil {
		t.Fatalf("ResolveObjectStorageConfig: %v", err)
	}
	store, err := NewBucketStore(logger.Nop(), BucketConfig{Storage: cfg, Bucket: bucket})
	if err != nil {
		t.Fatalf("NewBucketStore: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pathname := "markbook-data/smoke-" + time.Now().UTC().Format("20060102T150405.000000000") + ".json"
	obj, err := store.Put(ctx, pathname, []byte(`{"students":[],"weeks":[]}`), "application/json")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	res, err := store.List(ctx, blob.ListOptions{Prefix: "markbook-data/", Limit: 100})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, o := range res.Objects {
		if o.Pathname == pathname {
			found = true
		}
	}
	if !found {
		t.Fatalf("List: %q not found in %d objects", pathname, len(res.Objects))
	}

	body, err := store.Get(ctx, obj.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"students":[],"weeks":[]}` {
		t.Fatalf("Get body: got=%q", body)
	}

	if err := store.Delete(ctx, obj.URL); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, obj.URL); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("Get after delete: want ErrNotFound got=%v", err)
	}
}
