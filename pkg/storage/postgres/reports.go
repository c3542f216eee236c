package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/pkg/results"
)

const reportColumns = `id, client_id, round, detector, mode, policy, threshold, auc, precision_score, recall_score, f1,
	tp, fp, tn, fn, intervals, created_at`

type ReportRepository struct {
	db *Database
}

func NewReportRepository(db *Database) *ReportRepository {
	return &ReportRepository{db: db}
}

type dbReport struct {
	ID        string    `db:"id"`
	ClientID  string    `db:"client_id"`
	Round     int       `db:"round"`
	Detector  string    `db:"detector"`
	Mode      string    `db:"mode"`
	Policy    string    `db:"policy"`
	Threshold float64   `db:"threshold"`
	AUC       float64   `db:"auc"`
	Precision float64   `db:"precision_score"`
	Recall    float64   `db:"recall_score"`
	F1        float64   `db:"f1"`
	TP        int       `db:"tp"`
	FP        int       `db:"fp"`
	TN        int       `db:"tn"`
	FN        int       `db:"fn"`
	Intervals []byte    `db:"intervals"`
	CreatedAt time.Time `db:"created_at"`
}

func toDBReport(r results.Report) (dbReport, error) {
	intervals, err := json.Marshal(r.Intervals)
	if err != nil {
		return dbReport{}, fmt.Errorf("%w: %w", ErrMarshal, err)
	}

	return dbReport{
		ID:        r.ID,
		ClientID:  r.ClientID,
		Round:     r.Round,
		Detector:  r.Detector,
		Mode:      r.Mode,
		Policy:    r.Policy,
		Threshold: r.Threshold,
		AUC:       r.AUC,
		Precision: r.Precision,
		Recall:    r.Recall,
		F1:        r.F1,
		TP:        r.Confusion.TP,
		FP:        r.Confusion.FP,
		TN:        r.Confusion.TN,
		FN:        r.Confusion.FN,
		Intervals: intervals,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func (d dbReport) toReport() (results.Report, error) {
	var intervals []evaluation.Interval
	if len(d.Intervals) > 0 {
		if err := json.Unmarshal(d.Intervals, &intervals); err != nil {
			return results.Report{}, fmt.Errorf("%w: %w", ErrMarshal, err)
		}
	}

	return results.Report{
		ID:        d.ID,
		ClientID:  d.ClientID,
		Round:     d.Round,
		Detector:  d.Detector,
		Mode:      d.Mode,
		Policy:    d.Policy,
		Threshold: d.Threshold,
		AUC:       d.AUC,
		Precision: d.Precision,
		Recall:    d.Recall,
		F1:        d.F1,
		Confusion: evaluation.Confusion{TP: d.TP, FP: d.FP, TN: d.TN, FN: d.FN},
		Intervals: intervals,
		CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

func (r *ReportRepository) Create(ctx context.Context, rp results.Report) error {
	row, err := toDBReport(rp)
	if err != nil {
		return err
	}

	query := `INSERT INTO reports (` + reportColumns + `)
		VALUES (:id, :client_id, :round, :detector, :mode, :policy, :threshold, :auc, :precision_score, :recall_score, :f1,
		:tp, :fp, :tn, :fn, :intervals, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return createErr(err)
	}

	return nil
}

func (r *ReportRepository) Get(ctx context.Context, id string) (results.Report, error) {
	var row dbReport
	if err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return results.Report{}, pkgerrors.ErrNotFound
		}

		return results.Report{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toReport()
}

func (r *ReportRepository) List(ctx context.Context, clientID string, offset, limit uint64) ([]results.Report, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reports WHERE $1::text = '' OR client_id = $1::text`, clientID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbReport
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+reportColumns+` FROM reports WHERE $1::text = '' OR client_id = $1::text
		ORDER BY client_id, round, detector, id LIMIT $2 OFFSET $3`,
		clientID, limit, offset,
	); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	reports := make([]results.Report, len(rows))
	for i, row := range rows {
		rp, err := row.toReport()
		if err != nil {
			return nil, 0, err
		}
		reports[i] = rp
	}

	return reports, total, nil
}
