package badger

import (
	"context"
	"fmt"

	"github.com/absmach/fedanomaly/pkg/results"
)

const (
	roundPrefix   = "round:"
	roundIDPrefix = "idx:round:"
)

type RoundRepository struct {
	db *Database
}

func NewRoundRepository(db *Database) *RoundRepository {
	return &RoundRepository{db: db}
}

func roundKey(r results.Round) []byte {
	return fmt.Appendf(nil, "%s%s:%010d:%s", roundPrefix, r.ClientID, r.Round, r.ID)
}

// listPrefix selects the records of one client, or of every client when
// clientID is empty.
func listPrefix(kind, clientID string) []byte {
	if clientID == "" {
		return []byte(kind)
	}

	return []byte(kind + clientID + ":")
}

func (r *RoundRepository) Create(_ context.Context, rd results.Round) error {
	return insert(r.db, []byte(roundIDPrefix+rd.ID), roundKey(rd), rd)
}

func (r *RoundRepository) Get(_ context.Context, id string) (results.Round, error) {
	return fetch[results.Round](r.db, []byte(roundIDPrefix+id))
}

func (r *RoundRepository) List(_ context.Context, clientID string, offset, limit uint64) ([]results.Round, uint64, error) {
	return page[results.Round](r.db, listPrefix(roundPrefix, clientID), offset, limit)
}
