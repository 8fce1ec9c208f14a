package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the gorm-backed audit.Log: constructor-injected *gorm.DB,
// `db.WithContext(ctx).Create(...)` for every write.
type Store struct {
	db *gorm.DB
}

var _ Log = (*Store)(nil)

// sqliteDSNPrefix selects the local/dev audit-log mode: a DSN of the
// form "sqlite://path/to/file.db" opens a file-backed sqlite database
// instead of dialling postgres, so a deployment without a postgres
// instance handy still gets a durable audit log.
const sqliteDSNPrefix = "sqlite://"

// Open connects to dsn and migrates the audit_records table. A
// "sqlite://" DSN opens a local file-backed database; any other DSN
// is handed to the postgres driver.
func Open(dsn string) (*Store, error) {
	dialector := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit_records: %w", err)
	}
	return &Store{db: db}, nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if path, ok := strings.CutPrefix(dsn, sqliteDSNPrefix); ok {
		return sqlite.Open(path)
	}
	return postgres.Open(dsn)
}

// NewWithDB wraps an already-open *gorm.DB (used by tests against an
// in-memory sqlite fixture).
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Write(ctx context.Context, r Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}
