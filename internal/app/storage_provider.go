package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/gcp"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/platform/redisblob"
	"github.com/yungbote/markbook-backend/internal/platform/sqlblob"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
	StorageModeRedis       StorageMode = "redis"
	StorageModePostgres    StorageMode = "postgres"
	StorageModeSQLite      StorageMode = "sqlite"
	StorageModeMemory      StorageMode = "memory"
)

var (
	newBucketStore = gcp.NewBucketStore
	newRedisStore  = func(log *logger.Logger, cfg redisblob.Config) (blob.Store, error) { return redisblob.New(log, cfg) }
	newSQLStore    = func(log *logger.Logger, cfg sqlblob.Config) (blob.Store, error) { return sqlblob.New(log, cfg) }
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code  StorageProviderBootstrapErrorCode
	Mode  string
	Cause error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "snapshot storage bootstrap failed"
	}
	return fmt.Sprintf("snapshot storage bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveSnapshotStore picks the blob backend for cfg. A nil store with a
// nil error means the selected backend has no connection settings; the
// gateway then answers every call with a configuration error.
func resolveSnapshotStore(log *logger.Logger, cfg Config) (blob.Store, StorageMode, error) {
	sc := cfg.Storage
	raw := strings.ToLower(strings.TrimSpace(sc.Mode))

	switch StorageMode(raw) {
	case "", StorageModeGCS, StorageModeGCSEmulator:
		storageCfg, err := gcp.ResolveObjectStorageConfig(raw, sc.EmulatorHost)
		if err != nil {
			return nil, StorageMode(raw), classifyStorageProviderBootstrapError(raw, err)
		}
		mode := StorageMode(storageCfg.Mode)
		bucketCfg := gcp.BucketConfig{
			Storage:       storageCfg,
			Bucket:        sc.Bucket,
			CDNDomain:     sc.CDNDomain,
			PublicBaseURL: sc.ObjectPublicBaseURL,
		}
		if !bucketCfg.Configured() {
			log.Warn("Snapshot storage not configured", "mode", mode, "missing", "MARKBOOK_GCS_BUCKET_NAME")
			return nil, mode, nil
		}
		store, err := newBucketStore(log, bucketCfg)
		if err != nil {
			return nil, mode, classifyStorageProviderBootstrapError(string(mode), err)
		}
		return store, mode, nil

	case StorageModeRedis:
		if strings.TrimSpace(sc.RedisAddr) == "" {
			log.Warn("Snapshot storage not configured", "mode", raw, "missing", "REDIS_ADDR")
			return nil, StorageModeRedis, nil
		}
		store, err := newRedisStore(log, redisblob.Config{
			Addr:          sc.RedisAddr,
			Password:      sc.RedisPassword,
			DB:            sc.RedisDB,
			PublicBaseURL: cfg.BlobBaseURL(),
		})
		if err != nil {
			return nil, StorageModeRedis, classifyStorageProviderBootstrapError(raw, err)
		}
		return store, StorageModeRedis, nil

	case StorageModePostgres, StorageModeSQLite:
		mode := StorageMode(raw)
		if strings.TrimSpace(sc.DatabaseDSN) == "" {
			log.Warn("Snapshot storage not configured", "mode", raw, "missing", "MARKBOOK_DATABASE_DSN")
			return nil, mode, nil
		}
		store, err := newSQLStore(log, sqlblob.Config{
			Dialect:       sqlblob.Dialect(raw),
			DSN:           sc.DatabaseDSN,
			PublicBaseURL: cfg.BlobBaseURL(),
		})
		if err != nil {
			return nil, mode, classifyStorageProviderBootstrapError(raw, err)
		}
		return store, mode, nil

	case StorageModeMemory:
		log.Warn("Using in-memory snapshot storage; saved snapshots are lost on restart")
		return blob.NewMemoryStore(cfg.BlobBaseURL()), StorageModeMemory, nil

	default:
		return nil, StorageMode(raw), &StorageProviderBootstrapError{
			Code:  StorageProviderBootstrapErrorInvalidMode,
			Mode:  raw,
			Cause: fmt.Errorf("unsupported MARKBOOK_STORAGE_MODE %q", sc.Mode),
		}
	}
}

func classifyStorageProviderBootstrapError(mode string, err error) error {
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			return &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorInvalidMode, Mode: mode, Cause: err}
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			return &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorMissingEmulatorHost, Mode: mode, Cause: err}
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			return &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorInvalidEmulatorHost, Mode: mode, Cause: err}
		}
	}
	return &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorConnectFailed, Mode: mode, Cause: err}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}
