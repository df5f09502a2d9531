package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

const (
	DefaultBlobPrefix = "markbook-data/"
	DefaultListLimit  = 100
)

var (
	ErrStorageNotConfigured = errors.New("blob storage not configured")
	ErrMissingSaveInput     = errors.New("missing data or filename")
	ErrMissingLocator       = errors.New("missing or invalid url")
	ErrStoredBlobNotJSON    = errors.New("stored blob is not valid JSON")
)

type SavedSnapshot struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
}

type SnapshotFile struct {
	Pathname    string    `json:"pathname"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Size        int64     `json:"size"`
	Filename    string    `json:"filename"`
}

type SnapshotListing struct {
	Files   []SnapshotFile `json:"files"`
	HasMore bool           `json:"hasMore"`
	Cursor  string         `json:"cursor,omitempty"`
}

type SnapshotGateway interface {
	Configured() bool
	Save(ctx context.Context, data json.RawMessage, filename string) (*SavedSnapshot, error)
	List(ctx context.Context) (*SnapshotListing, error)
	Load(ctx context.Context, locator string) (json.RawMessage, error)
	Delete(ctx context.Context, locator string) error
}

type SnapshotGatewayConfig struct {
	Prefix    string
	ListLimit int
	// Now stamps pathnames; defaults to time.Now.
	Now func() time.Time
}

type snapshotGateway struct {
	log    *logger.Logger
	store  blob.Store
	prefix string
	limit  int
	now    func() time.Time
	tracer trace.Tracer
	lists  singleflight.Group
}

// NewSnapshotGateway wraps store. A nil store yields a gateway whose every
// call fails with ErrStorageNotConfigured.
func NewSnapshotGateway(log *logger.Logger, store blob.Store, cfg SnapshotGatewayConfig) SnapshotGateway {
	prefix := cfg.Prefix
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultBlobPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	limit := cfg.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &snapshotGateway{
		log:    log.With("service", "SnapshotGateway"),
		store:  store,
		prefix: prefix,
		limit:  limit,
		now:    now,
		tracer: otel.Tracer("markbook/services/snapshot"),
	}
}

func (g *snapshotGateway) Configured() bool { return g.store != nil }

// SnapshotPathname returns prefix + filename + "-" + the UTC timestamp with
// ':' and '.' replaced by '-', suffixed ".json".
func SnapshotPathname(prefix, filename string, at time.Time) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return prefix + filename + "-" + ts + ".json"
}

// SnapshotFilename is the last pathname segment with the first ".json"
// removed.
func SnapshotFilename(pathname string) string {
	last := pathname
	if i := strings.LastIndex(pathname, "/"); i >= 0 {
		last = pathname[i+1:]
	}
	return strings.Replace(last, ".json", "", 1)
}

func (g *snapshotGateway) Save(ctx context.Context, data json.RawMessage, filename string) (*SavedSnapshot, error) {
	if g.store == nil {
		return nil, ErrStorageNotConfigured
	}
	trimmed := bytes.TrimSpace(data)
	if missingJSON(trimmed) || filename == "" {
		return nil, ErrMissingSaveInput
	}

	pathname := SnapshotPathname(g.prefix, filename, g.now())
	ctx, span := g.tracer.Start(ctx, "snapshot.save", trace.WithAttributes(attribute.String("blob.pathname", pathname)))
	defer span.End()

	var body bytes.Buffer
	if err := json.Indent(&body, trimmed, "", "  "); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "indent")
		return nil, fmt.Errorf("indent snapshot: %w", err)
	}

	obj, err := g.store.Put(ctx, pathname, body.Bytes(), "application/json")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put")
		return nil, fmt.Errorf("put %q: %w", pathname, err)
	}
	g.log.Info("Snapshot saved", "pathname", obj.Pathname, "size", obj.Size)
	return &SavedSnapshot{URL: obj.URL, DownloadURL: obj.DownloadURL, Pathname: obj.Pathname}, nil
}

// missingJSON reports an absent value or a JSON literal that a browser
// client treats as no data: null, false, "" or a numeric zero.
func missingJSON(raw []byte) bool {
	switch string(raw) {
	case "", "null", "false", `""`:
		return true
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		f, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && f == 0
	}
	return false
}

// List coalesces concurrent callers into one backend listing. The shared
// listing is detached from any single caller's cancellation; each caller
// still stops waiting when its own ctx is done.
func (g *snapshotGateway) List(ctx context.Context) (*SnapshotListing, error) {
	if g.store == nil {
		return nil, ErrStorageNotConfigured
	}
	shareCtx := context.WithoutCancel(ctx)
	ch := g.lists.DoChan(g.prefix, func() (interface{}, error) {
		return g.list(shareCtx)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	out := res.Val.(*SnapshotListing)
	if res.Shared {
		cp := *out
		cp.Files = append([]SnapshotFile(nil), out.Files...)
		return &cp, nil
	}
	return out, nil
}

func (g *snapshotGateway) list(ctx context.Context) (*SnapshotListing, error) {
	ctx, span := g.tracer.Start(ctx, "snapshot.list", trace.WithAttributes(
		attribute.String("blob.prefix", g.prefix),
		attribute.Int("blob.limit", g.limit),
	))
	defer span.End()

	res, err := g.store.List(ctx, blob.ListOptions{Prefix: g.prefix, Limit: g.limit})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list")
		return nil, fmt.Errorf("list %q: %w", g.prefix, err)
	}
	files := make([]SnapshotFile, 0, len(res.Objects))
	for _, o := range res.Objects {
		files = append(files, SnapshotFile{
			Pathname:    o.Pathname,
			URL:         o.URL,
			DownloadURL: o.DownloadURL,
			UploadedAt:  o.UploadedAt,
			Size:        o.Size,
			Filename:    SnapshotFilename(o.Pathname),
		})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].UploadedAt.After(files[j].UploadedAt) })
	span.SetAttributes(attribute.Int("blob.count", len(files)))
	return &SnapshotListing{Files: files, HasMore: res.HasMore, Cursor: res.Cursor}, nil
}

func (g *snapshotGateway) Load(ctx context.Context, locator string) (json.RawMessage, error) {
	if g.store == nil {
		return nil, ErrStorageNotConfigured
	}
	if strings.TrimSpace(locator) == "" {
		return nil, ErrMissingLocator
	}
	ctx, span := g.tracer.Start(ctx, "snapshot.load")
	defer span.End()

	body, err := g.store.Get(ctx, locator)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "get")
		}
		return nil, err
	}
	if !json.Valid(body) {
		span.SetStatus(codes.Error, "invalid json")
		return nil, ErrStoredBlobNotJSON
	}
	return json.RawMessage(body), nil
}

func (g *snapshotGateway) Delete(ctx context.Context, locator string) error {
	if g.store == nil {
		return ErrStorageNotConfigured
	}
	if strings.TrimSpace(locator) == "" {
		return ErrMissingLocator
	}
	ctx, span := g.tracer.Start(ctx, "snapshot.delete")
	defer span.End()

	if err := g.store.Delete(ctx, locator); err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete")
		}
		return err
	}
	g.log.Info("Snapshot deleted", "locator", locator)
	return nil
}
