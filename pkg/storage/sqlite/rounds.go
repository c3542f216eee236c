package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/results"
)

const roundColumns = `id, client_id, round, epochs, sequence_loss, sequence_val_loss, spectral_loss, spectral_val_loss,
	bytes_sent, bytes_received, training_ns, upload_ns, download_ns, started_at, finished_at`

type RoundRepository struct {
	db *Database
}

func NewRoundRepository(db *Database) *RoundRepository {
	return &RoundRepository{db: db}
}

type dbRound struct {
	ID              string    `db:"id"`
	ClientID        string    `db:"client_id"`
	Round           int       `db:"round"`
	Epochs          int       `db:"epochs"`
	SequenceLoss    float64   `db:"sequence_loss"`
	SequenceValLoss float64   `db:"sequence_val_loss"`
	SpectralLoss    float64   `db:"spectral_loss"`
	SpectralValLoss float64   `db:"spectral_val_loss"`
	BytesSent       int64     `db:"bytes_sent"`
	BytesReceived   int64     `db:"bytes_received"`
	Training        int64     `db:"training_ns"`
	Upload          int64     `db:"upload_ns"`
	Download        int64     `db:"download_ns"`
	StartedAt       time.Time `db:"started_at"`
	FinishedAt      time.Time `db:"finished_at"`
}

func toDBRound(r results.Round) dbRound {
	return dbRound{
		ID:              r.ID,
		ClientID:        r.ClientID,
		Round:           r.Round,
		Epochs:          r.Epochs,
		SequenceLoss:    r.SequenceLoss,
		SequenceValLoss: r.SequenceValLoss,
		SpectralLoss:    r.SpectralLoss,
		SpectralValLoss: r.SpectralValLoss,
		BytesSent:       int64(r.BytesSent),
		BytesReceived:   int64(r.BytesReceived),
		Training:        int64(r.Training),
		Upload:          int64(r.Upload),
		Download:        int64(r.Download),
		StartedAt:       r.StartedAt.UTC(),
		FinishedAt:      r.FinishedAt.UTC(),
	}
}

func (d dbRound) toRound() results.Round {
	return results.Round{
		ID:              d.ID,
		ClientID:        d.ClientID,
		Round:           d.Round,
		Epochs:          d.Epochs,
		SequenceLoss:    d.SequenceLoss,
		SequenceValLoss: d.SequenceValLoss,
		SpectralLoss:    d.SpectralLoss,
		SpectralValLoss: d.SpectralValLoss,
		BytesSent:       uint64(d.BytesSent),
		BytesReceived:   uint64(d.BytesReceived),
		Training:        time.Duration(d.Training),
		Upload:          time.Duration(d.Upload),
		Download:        time.Duration(d.Download),
		StartedAt:       d.StartedAt.UTC(),
		FinishedAt:      d.FinishedAt.UTC(),
	}
}

func (r *RoundRepository) Create(ctx context.Context, rd results.Round) error {
	query := `INSERT INTO rounds (` + roundColumns + `)
		VALUES (:id, :client_id, :round, :epochs, :sequence_loss, :sequence_val_loss, :spectral_loss, :spectral_val_loss,
		:bytes_sent, :bytes_received, :training_ns, :upload_ns, :download_ns, :started_at, :finished_at)`

	if _, err := r.db.NamedExecContext(ctx, query, toDBRound(rd)); err != nil {
		return createErr(err)
	}

	return nil
}

func (r *RoundRepository) Get(ctx context.Context, id string) (results.Round, error) {
	var row dbRound
	if err := r.db.GetContext(ctx, &row, `SELECT `+roundColumns+` FROM rounds WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return results.Round{}, pkgerrors.ErrNotFound
		}

		return results.Round{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toRound(), nil
}

func (r *RoundRepository) List(ctx context.Context, clientID string, offset, limit uint64) ([]results.Round, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM rounds WHERE ? = '' OR client_id = ?`, clientID, clientID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbRound
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+roundColumns+` FROM rounds WHERE ? = '' OR client_id = ?
		ORDER BY client_id, round, id LIMIT ? OFFSET ?`,
		clientID, clientID, limit, offset,
	); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	rounds := make([]results.Round, len(rows))
	for i, row := range rows {
		rounds[i] = row.toRound()
	}

	return rounds, total, nil
}
