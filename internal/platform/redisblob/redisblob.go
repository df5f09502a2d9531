package redisblob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

const defaultNamespace = "markbook"

type Config struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	// PublicBaseURL is where this service serves blobs back (GET /blob/*).
	PublicBaseURL string
}

// Store keeps each body under <ns>:blob:<pathname> and indexes pathnames in
// the sorted set <ns>:blobs scored by upload time in milliseconds.
type Store struct {
	log   *logger.Logger
	rdb   goredis.UniversalClient
	ns    string
	loc   blob.Locator
	now   func() time.Time
	owned bool
}

func New(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := NewWithClient(log, rdb, cfg.Namespace, cfg.PublicBaseURL)
	s.owned = true
	s.log.Info("Redis blob store ready", "addr", addr, "db", cfg.DB, "namespace", s.ns)
	return s, nil
}

// NewWithClient wraps an existing client. Close leaves the client open.
func NewWithClient(log *logger.Logger, rdb goredis.UniversalClient, namespace, publicBaseURL string) *Store {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = defaultNamespace
	}
	return &Store{
		log: log.With("service", "RedisBlobStore"),
		rdb: rdb,
		ns:  ns,
		loc: blob.NewLocator(publicBaseURL),
		now: time.Now,
	}
}

func (s *Store) bodyKey(pathname string) string { return s.ns + ":blob:" + pathname }
func (s *Store) indexKey() string              { return s.ns + ":blobs" }

func (s *Store) Put(ctx context.Context, pathname string, body []byte, _ string) (*blob.Object, error) {
	ts := s.now().UTC()
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.bodyKey(pathname), body, 0)
		p.ZAdd(ctx, s.indexKey(), goredis.Z{Score: float64(ts.UnixMilli()), Member: pathname})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis put %q: %w", pathname, err)
	}
	return s.object(pathname, int64(len(body)), ts), nil
}

func (s *Store) List(ctx context.Context, opts blob.ListOptions) (*blob.ListResult, error) {
	entries, err := s.rdb.ZRevRangeWithScores(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	matched := make([]goredis.Z, 0, len(entries))
	for _, z := range entries {
		p, _ := z.Member.(string)
		if strings.HasPrefix(p, opts.Prefix) {
			matched = append(matched, z)
		}
	}
	res := &blob.ListResult{}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
		res.HasMore = true
		res.Cursor = strconv.Itoa(opts.Limit)
	}
	if len(matched) == 0 {
		res.Objects = []blob.Object{}
		return res, nil
	}

	pipe := s.rdb.Pipeline()
	lens := make([]*goredis.IntCmd, len(matched))
	for i, z := range matched {
		lens[i] = pipe.StrLen(ctx, s.bodyKey(z.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis list sizes: %w", err)
	}

	res.Objects = make([]blob.Object, 0, len(matched))
	for i, z := range matched {
		ts := time.UnixMilli(int64(z.Score)).UTC()
		res.Objects = append(res.Objects, *s.object(z.Member.(string), lens[i].Val(), ts))
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, locator string) ([]byte, error) {
	p, ok := s.loc.Pathname(locator)
	if !ok {
		return nil, fmt.Errorf("locator %q: %w", locator, blob.ErrNotFound)
	}
	body, err := s.rdb.Get(ctx, s.bodyKey(p)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis blob %q: %w", p, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", p, err)
	}
	return body, nil
}

func (s *Store) Delete(ctx context.Context, locator string) error {
	p, ok := s.loc.Pathname(locator)
	if !ok {
		return fmt.Errorf("locator %q: %w", locator, blob.ErrNotFound)
	}
	var del *goredis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, s.bodyKey(p))
		pipe.ZRem(ctx, s.indexKey(), p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %q: %w", p, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("redis blob %q: %w", p, blob.ErrNotFound)
	}
	return nil
}

// Client exposes the underlying connection for health collectors.
func (s *Store) Client() goredis.UniversalClient { return s.rdb }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil || !s.owned {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) object(pathname string, size int64, ts time.Time) *blob.Object {
	return &blob.Object{
		Pathname:    pathname,
		URL:         s.loc.URL(pathname),
		DownloadURL: s.loc.DownloadURL(pathname),
		UploadedAt:  ts,
		Size:        size,
	}
}
