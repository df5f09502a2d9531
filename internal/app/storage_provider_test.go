package app

import (
	"errors"
	"testing"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/gcp"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/platform/redisblob"
	"github.com/yungbote/markbook-backend/internal/platform/sqlblob"
)

func testConfig(storage StorageConfig) Config {
	return Config{PublicBaseURL: "http://localhost:8080", Storage: storage}
}

func TestResolveSnapshotStoreUnconfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  StorageConfig
		mode StorageMode
	}{
		{name: "default gcs without bucket", cfg: StorageConfig{}, mode: StorageModeGCS},
		{name: "redis without addr", cfg: StorageConfig{Mode: "redis"}, mode: StorageModeRedis},
		{name: "postgres without dsn", cfg: StorageConfig{Mode: "postgres"}, mode: StorageModePostgres},
		{name: "sqlite without dsn", cfg: StorageConfig{Mode: "SQLite"}, mode: StorageModeSQLite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mode, err := resolveSnapshotStore(logger.Nop(), testConfig(tc.cfg))
			if err != nil {
				t.Fatalf("resolveSnapshotStore: %v", err)
			}
			if store != nil {
				t.Fatalf("store: want nil got=%T", store)
			}
			if mode != tc.mode {
				t.Fatalf("mode: want=%q got=%q", tc.mode, mode)
			}
		})
	}
}

func TestResolveSnapshotStoreMemory(t *testing.T) {
	store, mode, err := resolveSnapshotStore(logger.Nop(), testConfig(StorageConfig{Mode: "memory"}))
	if err != nil {
		t.Fatalf("resolveSnapshotStore: %v", err)
	}
	if mode != StorageModeMemory {
		t.Fatalf("mode: want=%q got=%q", StorageModeMemory, mode)
	}
	if _, ok := store.(*blob.MemoryStore); !ok {
		t.Fatalf("store: want *blob.MemoryStore got=%T", store)
	}
}

func TestResolveSnapshotStoreInvalidMode(t *testing.T) {
	_, _, err := resolveSnapshotStore(logger.Nop(), testConfig(StorageConfig{Mode: "s3"}))
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%q (%v)", StorageProviderBootstrapErrorInvalidMode, code, err)
	}
}

func TestResolveSnapshotStoreEmulatorMissingHost(t *testing.T) {
	_, _, err := resolveSnapshotStore(logger.Nop(), testConfig(StorageConfig{Mode: "gcs_emulator", Bucket: "marks"}))
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorMissingEmulatorHost {
		t.Fatalf("code: want=%q got=%q (%v)", StorageProviderBootstrapErrorMissingEmulatorHost, code, err)
	}
}

func TestResolveSnapshotStorePassesBucketConfig(t *testing.T) {
	orig := newBucketStore
	t.Cleanup(func() { newBucketStore = orig })

	var got gcp.BucketConfig
	newBucketStore = func(_ *logger.Logger, cfg gcp.BucketConfig) (blob.Store, error) {
		got = cfg
		return blob.NewMemoryStore(""), nil
	}
	store, mode, err := resolveSnapshotStore(logger.Nop(), testConfig(StorageConfig{
		Bucket:       "marks",
		CDNDomain:    "cdn.example.com",
		EmulatorHost: "http://fake-gcs:4443",
	}))
	if err != nil || store == nil {
		t.Fatalf("resolveSnapshotStore: store=%v err=%v", store, err)
	}
	if mode != StorageModeGCSEmulator || !got.Storage.Inferred {
		t.Fatalf("mode: want inferred emulator got mode=%q cfg=%+v", mode, got.Storage)
	}
	if got.Bucket != "marks" || got.CDNDomain != "cdn.example.com" {
		t.Fatalf("bucket config: got=%+v", got)
	}
}

func TestResolveSnapshotStoreConnectFailed(t *testing.T) {
	origRedis, origSQL := newRedisStore, newSQLStore
	t.Cleanup(func() { newRedisStore, newSQLStore = origRedis, origSQL })

	newRedisStore = func(*logger.Logger, redisblob.Config) (blob.Store, error) { return nil, errors.New("dial tcp: refused") }
	var sqlCfg sqlblob.Config
	newSQLStore = func(_ *logger.Logger, cfg sqlblob.Config) (blob.Store, error) {
		sqlCfg = cfg
		return nil, errors.New("connect postgres: refused")
	}

	_, _, err := resolveSnapshotStore(logger.Nop(), testConfig(StorageConfig{Mode: "redis", RedisAddr: "localhost:1"}))
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("redis code: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, code)
	}
	_, _, err = resolveSnapshotStore(logger.Nop(), testConfig(StorageConfig{Mode: "postgres", DatabaseDSN: "postgres://x"}))
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("postgres code: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, code)
	}
	if sqlCfg.Dialect != sqlblob.DialectPostgres || sqlCfg.PublicBaseURL != "http://localhost:8080/api/markbook/blob" {
		t.Fatalf("sql config: got=%+v", sqlCfg)
	}
}
