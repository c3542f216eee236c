package badger

import (
	"context"
	"fmt"

	"github.com/absmach/fedanomaly/pkg/results"
)

const (
	reportPrefix   = "report:"
	reportIDPrefix = "idx:report:"
)

type ReportRepository struct {
	db *Database
}

func NewReportRepository(db *Database) *ReportRepository {
	return &ReportRepository{db: db}
}

func reportKey(r results.Report) []byte {
	return fmt.Appendf(nil, "%s%s:%010d:%s:%s", reportPrefix, r.ClientID, r.Round, r.Detector, r.ID)
}

func (r *ReportRepository) Create(_ context.Context, rp results.Report) error {
	return insert(r.db, []byte(reportIDPrefix+rp.ID), reportKey(rp), rp)
}

func (r *ReportRepository) Get(_ context.Context, id string) (results.Report, error) {
	return fetch[results.Report](r.db, []byte(reportIDPrefix+id))
}

func (r *ReportRepository) List(_ context.Context, clientID string, offset, limit uint64) ([]results.Report, uint64, error) {
	return page[results.Report](r.db, listPrefix(reportPrefix, clientID), offset, limit)
}
