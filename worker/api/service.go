package api

import (
	"context"

	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/absmach/fedanomaly/worker"
)

// StatusReader exposes the live state of a controller.
type StatusReader interface {
	Status() worker.Status
}

// Service reads the stored records of one worker.
type Service interface {
	ListRounds(ctx context.Context, offset, limit uint64) (results.Page[results.Round], error)
	GetRound(ctx context.Context, id string) (results.Round, error)
	ListReports(ctx context.Context, offset, limit uint64) (results.Page[results.Report], error)
	GetReport(ctx context.Context, id string) (results.Report, error)
}
