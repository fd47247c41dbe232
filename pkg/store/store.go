package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slogGorm "github.com/orandin/slog-gorm"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("store")

const (
	DefaultIssueBatchSize      = 2000
	DefaultRepositoryBatchSize = 1000
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	issueBatchSize      int
	repositoryBatchSize int
}

type Option func(*Store)

func WithIssueBatchSize(n int) Option {
	return func(s *Store) { s.issueBatchSize = n }
}

func WithRepositoryBatchSize(n int) Option {
	return func(s *Store) { s.repositoryBatchSize = n }
}

// IsPostgres reports whether dsn names a Postgres database. Anything else is
// opened as a SQLite path.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Open connects to dsn and optionally migrates the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger, migrate bool, opts ...Option) (*Store, error) {
	logger = logger.With("module", "store")

	gormLogger := slogGorm.New(slogGorm.WithLogger(logger))

	var dialector gorm.Dialector
	if IsPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !IsPostgres(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql db: %w", err)
		}
		// One connection keeps :memory: databases alive and serializes writers.
		sqlDB.SetMaxOpenConns(1)

		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, fmt.Errorf("failed to set journal mode: %w", err)
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
		}
	}

	s := New(db, logger, opts...)

	if migrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func New(db *gorm.DB, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		db:                  db,
		logger:              logger,
		issueBatchSize:      DefaultIssueBatchSize,
		repositoryBatchSize: DefaultRepositoryBatchSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&IssueEvent{}, &Repository{}, &Watermark{}, &Run{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// WithTx runs fn in one transaction. It commits when fn returns nil and
// rolls back otherwise, releasing the connection either way.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.Close()
}
