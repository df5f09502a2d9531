package sqlblob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Config struct {
	Dialect       Dialect
	DSN           string
	PublicBaseURL string
}

// SnapshotBlob is one stored blob row. Body is a json (not jsonb) column so
// postgres keeps the saved text byte for byte.
type SnapshotBlob struct {
	Pathname   string         `gorm:"column:pathname;primaryKey;size:512"`
	Body       datatypes.JSON `gorm:"column:body;type:json;not null"`
	Size       int64          `gorm:"column:size;not null"`
	UploadedAt time.Time      `gorm:"column:uploaded_at;not null;index"`
}

func (SnapshotBlob) TableName() string { return "markbook_snapshot_blob" }

type Store struct {
	db  *gorm.DB
	log *logger.Logger
	loc blob.Locator
	now func() time.Time
}

func New(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("missing MARKBOOK_DATABASE_DSN")
	}

	var dialector gorm.Dialector
	switch cfg.Dialect {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", cfg.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Dialect, err)
	}
	s, err := NewWithDB(log, db, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	s.log.Info("SQL blob store ready", "dialect", cfg.Dialect)
	return s, nil
}

// NewWithDB migrates the blob table on db and wraps it.
func NewWithDB(log *logger.Logger, db *gorm.DB, publicBaseURL string) (*Store, error) {
	if err := db.AutoMigrate(&SnapshotBlob{}); err != nil {
		return nil, fmt.Errorf("auto migrate snapshot blobs: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With("service", "SQLBlobStore"),
		loc: blob.NewLocator(publicBaseURL),
		now: time.Now,
	}, nil
}

func (s *Store) Put(ctx context.Context, pathname string, body []byte, _ string) (*blob.Object, error) {
	row := SnapshotBlob{
		Pathname:   pathname,
		Body:       datatypes.JSON(append([]byte(nil), body...)),
		Size:       int64(len(body)),
		UploadedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, fmt.Errorf("save blob %q: %w", pathname, err)
	}
	return s.object(row), nil
}

func (s *Store) List(ctx context.Context, opts blob.ListOptions) (*blob.ListResult, error) {
	q := s.db.WithContext(ctx).
		Model(&SnapshotBlob{}).
		Select("pathname", "size", "uploaded_at").
		Order("uploaded_at DESC")
	if opts.Prefix != "" {
		q = q.Where("pathname LIKE ? ESCAPE '\\'", escapeLike(opts.Prefix)+"%")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit + 1)
	}
	var rows []SnapshotBlob
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	res := &blob.ListResult{}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
		res.HasMore = true
		res.Cursor = strconv.Itoa(opts.Limit)
	}
	res.Objects = make([]blob.Object, 0, len(rows))
	for _, r := range rows {
		res.Objects = append(res.Objects, *s.object(r))
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, locator string) ([]byte, error) {
	p, ok := s.loc.Pathname(locator)
	if !ok {
		return nil, fmt.Errorf("locator %q: %w", locator, blob.ErrNotFound)
	}
	var row SnapshotBlob
	err := s.db.WithContext(ctx).Where("pathname = ?", p).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sql blob %q: %w", p, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %q: %w", p, err)
	}
	return []byte(row.Body), nil
}

func (s *Store) Delete(ctx context.Context, locator string) error {
	p, ok := s.loc.Pathname(locator)
	if !ok {
		return fmt.Errorf("locator %q: %w", locator, blob.ErrNotFound)
	}
	res := s.db.WithContext(ctx).Where("pathname = ?", p).Delete(&SnapshotBlob{})
	if res.Error != nil {
		return fmt.Errorf("delete blob %q: %w", p, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sql blob %q: %w", p, blob.ErrNotFound)
	}
	return nil
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) object(r SnapshotBlob) *blob.Object {
	return &blob.Object{
		Pathname:    r.Pathname,
		URL:         s.loc.URL(r.Pathname),
		DownloadURL: s.loc.DownloadURL(r.Pathname),
		UploadedAt:  r.UploadedAt.UTC(),
		Size:        r.Size,
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
