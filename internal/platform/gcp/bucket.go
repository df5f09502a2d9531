package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

// BucketConfig selects the bucket snapshots live in.
type BucketConfig struct {
	Storage   ObjectStorageConfig
	Bucket    string
	CDNDomain string
	// PublicBaseURL overrides the host used in object URLs (e.g. a
	// host-reachable emulator address).
	PublicBaseURL string
}

func (c BucketConfig) Configured() bool { return strings.TrimSpace(c.Bucket) != "" }

type bucketStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	bucket        string
	cdnDomain     string
	publicBaseURL string
	httpClient    *http.Client
}

// NewBucketStore opens a GCS client for cfg and returns it as a blob.Store.
func NewBucketStore(log *logger.Logger, cfg BucketConfig) (blob.Store, error) {
	if err := ValidateObjectStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing env var MARKBOOK_GCS_BUCKET_NAME")
	}
	publicBaseURL, publicBaseSource, err := resolveObjectStoragePublicBaseURL(cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	stClient, err := newStorageClientForMode(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "BucketStore")
	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"public_base_source", publicBaseSource,
		"public_base_url", publicBaseURL,
		"bucket", cfg.Bucket,
	)

	return &bucketStore{
		log:           serviceLog,
		storageClient: stClient,
		storageMode:   cfg.Storage.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(cfg.Storage.EmulatorHost), "/"),
		bucket:        strings.TrimSpace(cfg.Bucket),
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
		publicBaseURL: publicBaseURL,
		httpClient:    http.DefaultClient,
	}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(storageCfg.Mode),
		}
	}
}

func resolveObjectStoragePublicBaseURL(storageCfg ObjectStorageConfig, override string) (baseURL string, source string, err error) {
	raw := strings.TrimSpace(override)
	if raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443",
				raw,
			)
		}
		return strings.TrimRight(raw, "/"), "object_storage_public_base_url", nil
	}
	if storageCfg.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"), "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

func (bs *bucketStore) Put(ctx context.Context, pathname string, body []byte, contentType string) (*blob.Object, error) {
	key := strings.TrimLeft(strings.TrimSpace(pathname), "/")
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = "application/json"
	}
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	obj := bs.object(key, int64(len(body)), time.Now().UTC())
	if attrs := w.Attrs(); attrs != nil {
		obj.Size = attrs.Size
		if !attrs.Created.IsZero() {
			obj.UploadedAt = attrs.Created
		}
	}
	return obj, nil
}

func (bs *bucketStore) List(ctx context.Context, opts blob.ListOptions) (*blob.ListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	it := bs.storageClient.Bucket(bs.bucket).Objects(ctx, &storage.Query{Prefix: opts.Prefix})
	var page []*storage.ObjectAttrs
	next, err := iterator.NewPager(it, limit, "").NextPage(&page)
	if err != nil {
		return nil, fmt.Errorf("list GCS objects under %q: %w", opts.Prefix, err)
	}

	out := &blob.ListResult{
		Objects: make([]blob.Object, 0, len(page)),
		HasMore: next != "",
		Cursor:  next,
	}
	for _, attrs := range page {
		if attrs == nil || attrs.Name == "" {
			continue
		}
		uploaded := attrs.Created
		if uploaded.IsZero() {
			uploaded = attrs.Updated
		}
		out.Objects = append(out.Objects, *bs.object(attrs.Name, attrs.Size, uploaded))
	}
	return out, nil
}

func (bs *bucketStore) Get(ctx context.Context, locator string) ([]byte, error) {
	key, ok := bs.keyFromLocator(locator)
	if !ok {
		return nil, fmt.Errorf("locator %q: %w", locator, blob.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if bs.isEmulatorMode() {
		return bs.emulatorDownload(ctx, key)
	}
	r, err := bs.storageClient.Bucket(bs.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("GCS object %q: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %q: %w", key, err)
	}
	return body, nil
}

func (bs *bucketStore) emulatorDownload(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bs.emulatorObjectMediaURL(bs.emulatorHost, key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed creating emulator download request: %w", err)
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed emulator download request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("emulator object %q: %w", key, blob.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

func (bs *bucketStore) Delete(ctx context.Context, locator string) error {
	key, ok := bs.keyFromLocator(locator)
	if !ok {
		return fmt.Errorf("locator %q: %w", locator, blob.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.storageClient.Bucket(bs.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("GCS object %q: %w", key, blob.ErrNotFound)
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bs.bucket, err)
	}
	return nil
}

func (bs *bucketStore) Close() error {
	if bs == nil || bs.storageClient == nil {
		return nil
	}
	return bs.storageClient.Close()
}

func (bs *bucketStore) object(key string, size int64, uploaded time.Time) *blob.Object {
	u := bs.publicURL(key)
	return &blob.Object{
		Pathname:    key,
		URL:         u,
		DownloadURL: blob.WithDownload(u),
		UploadedAt:  uploaded,
		Size:        size,
	}
}

func (bs *bucketStore) publicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	if bs.storageMode == ObjectStorageModeGCSEmulator {
		base := bs.publicBaseURL
		if base == "" {
			base = bs.emulatorHost
		}
		if base != "" {
			return bs.emulatorObjectMediaURL(base, key)
		}
	}
	if bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucket, key)
}

func (bs *bucketStore) emulatorObjectMediaURL(base, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(strings.TrimSpace(base), "/"),
		url.PathEscape(bs.bucket),
		url.PathEscape(key),
	)
}

// keyFromLocator reverses publicURL. Bare object keys are accepted too.
func (bs *bucketStore) keyFromLocator(locator string) (string, bool) {
	loc := strings.TrimSpace(locator)
	if loc == "" {
		return "", false
	}
	if !strings.Contains(loc, "://") {
		key := strings.TrimLeft(blob.StripQuery(loc), "/")
		return key, key != ""
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	path := u.EscapedPath()

	mediaPrefix := "/storage/v1/b/" + url.PathEscape(bs.bucket) + "/o/"
	var rest string
	switch {
	case strings.HasPrefix(path, mediaPrefix):
		rest = strings.TrimPrefix(path, mediaPrefix)
	case bs.cdnDomain != "" && strings.EqualFold(u.Host, bs.cdnDomain):
		rest = strings.TrimPrefix(path, "/")
	case strings.HasPrefix(path, "/"+bs.bucket+"/"):
		rest = strings.TrimPrefix(path, "/"+bs.bucket+"/")
	default:
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (bs *bucketStore) isEmulatorMode() bool {
	return bs != nil && IsEmulatorObjectStorageMode(bs.storageMode) && strings.TrimSpace(bs.emulatorHost) != ""
}
