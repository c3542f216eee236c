package storage

import (
	"context"

	"github.com/absmach/fedanomaly/pkg/results"
)

// RoundRepository stores round records. List returns the records of one
// client ordered by round, or of every client when clientID is empty.
type RoundRepository interface {
	Create(ctx context.Context, r results.Round) error
	Get(ctx context.Context, id string) (results.Round, error)
	List(ctx context.Context, clientID string, offset, limit uint64) ([]results.Round, uint64, error)
}

// ReportRepository stores evaluation reports, ordered like rounds and then
// by detector.
type ReportRepository interface {
	Create(ctx context.Context, r results.Report) error
	Get(ctx context.Context, id string) (results.Report, error)
	List(ctx context.Context, clientID string, offset, limit uint64) ([]results.Report, uint64, error)
}
