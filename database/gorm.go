package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/injectgen/logging"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// planRecord is the table row of a Record.
type planRecord struct {
	ID            uint   `gorm:"primaryKey"`
	Container     string `gorm:"index:idx_container_created,priority:1;size:512;not null"`
	Manifest      string
	Digest        string `gorm:"size:64;index"`
	AsyncTeardown bool
	Roots         int
	Stubs         int
	Errors        int
	Summary       []byte
	CreatedAt     time.Time `gorm:"index:idx_container_created,priority:2"`
}

func (planRecord) TableName() string { return "plan_records" }

func toRow(r *Record) *planRecord {
	return &planRecord{
		Container:     r.Container,
		Manifest:      r.Manifest,
		Digest:        r.Digest,
		AsyncTeardown: r.AsyncTeardown,
		Roots:         r.Roots,
		Stubs:         r.Stubs,
		Errors:        r.Errors,
		Summary:       r.Summary,
		CreatedAt:     r.CreatedAt,
	}
}

func (p *planRecord) record() *Record {
	return &Record{
		Container:     p.Container,
		Manifest:      p.Manifest,
		Digest:        p.Digest,
		AsyncTeardown: p.AsyncTeardown,
		Roots:         p.Roots,
		Stubs:         p.Stubs,
		Errors:        p.Errors,
		Summary:       p.Summary,
		CreatedAt:     p.CreatedAt,
	}
}

var _ Store = (*GormStore)(nil)

// GormStore is a Store on any gorm dialector.
type GormStore struct {
	db     *gorm.DB
	logger logging.Logger
}

// Open connects, configures the pool and migrates the schema.
func Open(opts *DatabaseOptions) (*GormStore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	db, err := gorm.Open(opts.Dialector, opts.GormConfig)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", opts.Dialector.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB for %s: %w", opts.Dialector.Name(), err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if err := db.AutoMigrate(&planRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate plan records: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithCategory("database")
	logger.Info("plan store opened", logging.Field{Key: "dialector", Value: opts.Dialector.Name()})
	return &GormStore{db: db, logger: logger}, nil
}

// OpenSQLite opens a sqlite plan store at dsn.
func OpenSQLite(dsn string, configure ...func(*DatabaseOptions)) (*GormStore, error) {
	opts := NewDefaultOptions(sqlite.Open(dsn))
	for _, c := range configure {
		c(opts)
	}
	return Open(opts)
}

func (s *GormStore) Save(ctx context.Context, r *Record) error {
	if err := s.db.WithContext(ctx).Create(toRow(r)).Error; err != nil {
		return fmt.Errorf("save plan record %s: %w", r.Container, err)
	}
	s.logger.Debug("plan record saved",
		logging.Field{Key: "container", Value: r.Container},
		logging.Field{Key: "digest", Value: r.Digest})
	return nil
}

func (s *GormStore) Latest(ctx context.Context, container string) (*Record, error) {
	var row planRecord
	err := s.db.WithContext(ctx).
		Where("container = ?", container).
		Order("created_at DESC").Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, container)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest plan record %s: %w", container, err)
	}
	return row.record(), nil
}

func (s *GormStore) History(ctx context.Context, container string, limit int) ([]*Record, error) {
	var rows []planRecord
	q := s.db.WithContext(ctx).Where("container = ?", container).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load plan history %s: %w", container, err)
	}
	out := make([]*Record, len(rows))
	for i := range rows {
		out[i] = rows[i].record()
	}
	return out, nil
}

func (s *GormStore) CloseContext(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
