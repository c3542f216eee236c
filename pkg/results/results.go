// Package results holds the records a worker keeps about its rounds and
// evaluations.
package results

import (
	"time"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/absmach/fedanomaly/worker"
	"github.com/google/uuid"
)

// Round is the stored form of one completed federated round.
type Round struct {
	ID              string        `json:"id"`
	ClientID        string        `json:"client_id"`
	Round           int           `json:"round"`
	Epochs          int           `json:"epochs"`
	SequenceLoss    float64       `json:"sequence_loss"`
	SequenceValLoss float64       `json:"sequence_val_loss"`
	SpectralLoss    float64       `json:"spectral_loss"`
	SpectralValLoss float64       `json:"spectral_val_loss"`
	BytesSent       uint64        `json:"bytes_sent"`
	BytesReceived   uint64        `json:"bytes_received"`
	Training        time.Duration `json:"training"`
	Upload          time.Duration `json:"upload"`
	Download        time.Duration `json:"download"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// Report is the stored form of one detector's evaluation.
type Report struct {
	ID        string                `json:"id"`
	ClientID  string                `json:"client_id"`
	Round     int                   `json:"round"`
	Detector  string                `json:"detector"`
	Mode      string                `json:"mode"`
	Policy    string                `json:"policy"`
	Threshold float64               `json:"threshold"`
	AUC       float64               `json:"auc"`
	Precision float64               `json:"precision"`
	Recall    float64               `json:"recall"`
	F1        float64               `json:"f1"`
	Confusion evaluation.Confusion  `json:"confusion"`
	Intervals []evaluation.Interval `json:"intervals"`
	CreatedAt time.Time             `json:"created_at"`
}

// RoundFrom converts the statistics of a finished round. The losses are the
// last epoch of the round.
func RoundFrom(stats worker.RoundStats) Round {
	r := Round{
		ID:            uuid.NewString(),
		ClientID:      stats.ClientID,
		Round:         stats.Round,
		Epochs:        stats.Epochs,
		BytesSent:     stats.BytesSent,
		BytesReceived: stats.BytesReceived,
		Training:      stats.Training,
		Upload:        stats.Upload,
		Download:      stats.Download,
		StartedAt:     stats.StartedAt,
		FinishedAt:    stats.FinishedAt,
	}
	r.SequenceLoss, r.SequenceValLoss = stats.History.Sequence.Last()
	r.SpectralLoss, r.SpectralValLoss = stats.History.Spectral.Last()

	return r
}

// ReportsFrom flattens an evaluation into one record per detector, in wire
// order.
func ReportsFrom(clientID string, round int, reports detector.Pair[trainer.Report]) []Report {
	now := time.Now().UTC()
	out := make([]Report, 0, len(detector.Kinds))
	for _, k := range detector.Kinds {
		r := reports.Get(k)
		out = append(out, Report{
			ID:        uuid.NewString(),
			ClientID:  clientID,
			Round:     round,
			Detector:  k.String(),
			Mode:      r.Mode,
			Policy:    string(r.Policy),
			Threshold: r.Threshold,
			AUC:       r.AUC,
			Precision: r.Precision,
			Recall:    r.Recall,
			F1:        r.F1,
			Confusion: r.Confusion,
			Intervals: r.Intervals,
			CreatedAt: now,
		})
	}

	return out
}

// Page is one slice of a listing together with the total number of records
// that match.
type Page[T any] struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Items  []T    `json:"items"`
}

// Evaluation groups the reports of one evaluation for publishing.
type Evaluation struct {
	ClientID string   `json:"client_id"`
	Round    int      `json:"round"`
	Reports  []Report `json:"reports"`
}
