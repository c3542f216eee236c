package testutil

import (
	"time"

	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/google/uuid"
)

var epoch = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

func TestRound(clientID string, round int) results.Round {
	start := epoch.Add(time.Duration(round) * time.Minute)

	return results.Round{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		Round:           round,
		Epochs:          5,
		SequenceLoss:    0.125 / float64(round),
		SequenceValLoss: 0.25 / float64(round),
		SpectralLoss:    1.5 / float64(round),
		SpectralValLoss: 2 / float64(round),
		BytesSent:       uint64(40_000 + round),
		BytesReceived:   uint64(40_000 + round),
		Training:        12 * time.Second,
		Upload:          150 * time.Millisecond,
		Download:        3 * time.Second,
		StartedAt:       start,
		FinishedAt:      start.Add(15 * time.Second),
	}
}

func TestReport(clientID string, round int, detector string) results.Report {
	return results.Report{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Round:     round,
		Detector:  detector,
		Mode:      "until-failure",
		Policy:    "optimal",
		Threshold: 0.0421,
		AUC:       0.875,
		Precision: 4.0 / 7.0,
		Recall:    1,
		F1:        8.0 / 11.0,
		Confusion: evaluation.Confusion{TP: 4, FP: 3, TN: 3},
		Intervals: []evaluation.Interval{{Start: 6, End: 9}},
		CreatedAt: epoch,
	}
}
