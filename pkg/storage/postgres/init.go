package postgres

import (
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

const uniqueViolation = "23505"

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

func NewDatabase(host, port, user, pass, name, sslMode string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", host, port, user, pass, name, sslMode)
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
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
						id VARCHAR(36) PRIMARY KEY,
						client_id VARCHAR(255) NOT NULL,
						round INTEGER NOT NULL,
						epochs INTEGER NOT NULL,
						sequence_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
						sequence_val_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
						spectral_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
						spectral_val_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
						bytes_sent BIGINT NOT NULL DEFAULT 0,
						bytes_received BIGINT NOT NULL DEFAULT 0,
						training_ns BIGINT NOT NULL DEFAULT 0,
						upload_ns BIGINT NOT NULL DEFAULT 0,
						download_ns BIGINT NOT NULL DEFAULT 0,
						started_at TIMESTAMPTZ NOT NULL,
						finished_at TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_client_round ON rounds(client_id, round)`,
					`CREATE TABLE IF NOT EXISTS reports (
						id VARCHAR(36) PRIMARY KEY,
						client_id VARCHAR(255) NOT NULL,
						round INTEGER NOT NULL,
						detector VARCHAR(32) NOT NULL,
						mode VARCHAR(32) NOT NULL,
						policy VARCHAR(32) NOT NULL,
						threshold DOUBLE PRECISION NOT NULL,
						auc DOUBLE PRECISION NOT NULL DEFAULT 0,
						precision_score DOUBLE PRECISION NOT NULL DEFAULT 0,
						recall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
						f1 DOUBLE PRECISION NOT NULL DEFAULT 0,
						tp INTEGER NOT NULL DEFAULT 0,
						fp INTEGER NOT NULL DEFAULT 0,
						tn INTEGER NOT NULL DEFAULT 0,
						fn INTEGER NOT NULL DEFAULT 0,
						intervals JSONB,
						created_at TIMESTAMPTZ NOT NULL
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

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}

func createErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", pkgerrors.ErrEntityExists, err)
	}

	return fmt.Errorf("%w: %w", ErrCreate, err)
}
