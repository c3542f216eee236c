package sqlite

import (
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrMigration    = errors.New("database migration error")
	ErrCreate       = errors.New("create error")
	ErrMarshal      = errors.New("marshal error")
)

type Repositories struct {
	Rounds  *RoundRepository
	Reports *ReportRepository
}

func NewRepositories(db *Database) *Repositories {
	return &Repositories{
		Rounds:  NewRoundRepository(db),
		Reports: NewReportRepository(db),
	}
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS rounds (
						id TEXT PRIMARY KEY,
						client_id TEXT NOT NULL,
						round INTEGER NOT NULL,
						epochs INTEGER NOT NULL,
						sequence_loss REAL NOT NULL DEFAULT 0,
						sequence_val_loss REAL NOT NULL DEFAULT 0,
						spectral_loss REAL NOT NULL DEFAULT 0,
						spectral_val_loss REAL NOT NULL DEFAULT 0,
						bytes_sent INTEGER NOT NULL DEFAULT 0,
						bytes_received INTEGER NOT NULL DEFAULT 0,
						training_ns INTEGER NOT NULL DEFAULT 0,
						upload_ns INTEGER NOT NULL DEFAULT 0,
						download_ns INTEGER NOT NULL DEFAULT 0,
						started_at TIMESTAMP NOT NULL,
						finished_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_client_round ON rounds(client_id, round)`,
					`CREATE TABLE IF NOT EXISTS reports (
						id TEXT PRIMARY KEY,
						client_id TEXT NOT NULL,
						round INTEGER NOT NULL,
						detector TEXT NOT NULL,
						mode TEXT NOT NULL,
						policy TEXT NOT NULL,
						threshold REAL NOT NULL,
						auc REAL NOT NULL DEFAULT 0,
						precision_score REAL NOT NULL DEFAULT 0,
						recall_score REAL NOT NULL DEFAULT 0,
						f1 REAL NOT NULL DEFAULT 0,
						tp INTEGER NOT NULL DEFAULT 0,
						fp INTEGER NOT NULL DEFAULT 0,
						tn INTEGER NOT NULL DEFAULT 0,
						fn INTEGER NOT NULL DEFAULT 0,
						intervals TEXT,
						created_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_reports_client_round ON reports(client_id, round, detector)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_reports_client_round`,
					`DROP TABLE IF EXISTS reports`,
					`DROP INDEX IF EXISTS idx_rounds_client_round`,
					`DROP TABLE IF EXISTS rounds`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}

func createErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w", pkgerrors.ErrEntityExists, err)
	}

	return fmt.Errorf("%w: %w", ErrCreate, err)
}
