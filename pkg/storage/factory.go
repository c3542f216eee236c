package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/absmach/fedanomaly/pkg/storage/badger"
	"github.com/absmach/fedanomaly/pkg/storage/postgres"
	"github.com/absmach/fedanomaly/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"STORAGE_TYPE" envDefault:"memory"`

	PostgresHost    string `env:"POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"POSTGRES_USER"    envDefault:"fedanomaly"`
	PostgresPass    string `env:"POSTGRES_PASS"    envDefault:"fedanomaly"`
	PostgresDB      string `env:"POSTGRES_DB"      envDefault:"fedanomaly"`
	PostgresSSLMode string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/fedanomaly.db"`

	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/badger"`
}

type Repositories struct {
	Rounds  RoundRepository
	Reports ReportRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

// Close releases the backend, if it holds anything.
func (r *Repositories) Close() error {
	if r.Closer == nil {
		return nil
	}

	return r.Closer.Close()
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		return newPostgresRepositories(cfg)
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory":
		return newMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPass,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
	if err != nil {
		return nil, err
	}

	repos := postgres.NewRepositories(db)

	return &Repositories{
		Rounds:  repos.Rounds,
		Reports: repos.Reports,
		Closer:  db,
	}, nil
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	repos := sqlite.NewRepositories(db)

	return &Repositories{
		Rounds:  repos.Rounds,
		Reports: repos.Reports,
		Closer:  db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	repos := badger.NewRepositories(db)

	return &Repositories{
		Rounds:  repos.Rounds,
		Reports: repos.Reports,
		Closer:  db,
	}, nil
}

func newMemoryRepositories() *Repositories {
	return &Repositories{
		Rounds:  newMemoryRoundRepository(),
		Reports: newMemoryReportRepository(),
	}
}
