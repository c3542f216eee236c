// Package badger stores worker results in an embedded Badger database.
//
// Every record is kept as JSON under a sortable primary key
// (<kind>:<client>:<round>:...) so that a prefix scan returns the records of
// one client in round order. A secondary idx:<kind>:<id> entry maps the
// record ID to that key.
package badger

import (
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrDBConnection = errors.New("badger database connection error")
	ErrDBQuery      = errors.New("database query error")
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
	db *badger.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// insert stores v under key and indexes it under idKey in one transaction.
// An already indexed ID is rejected with ErrEntityExists.
func insert(d *Database, idKey, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarshal, err)
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		switch _, err := txn.Get(idKey); {
		case err == nil:
			return pkgerrors.ErrEntityExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}

		return txn.Set(idKey, key)
	})
	switch {
	case errors.Is(err, pkgerrors.ErrEntityExists):
		return err
	case err != nil:
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

// fetch resolves idKey to its primary key and decodes the record stored
// there.
func fetch[T any](d *Database, idKey []byte) (T, error) {
	var (
		out T
		val []byte
	)
	err := d.db.View(func(txn *badger.Txn) error {
		idx, err := txn.Get(idKey)
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)

		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return out, pkgerrors.ErrNotFound
	case err != nil:
		return out, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	if err := json.Unmarshal(val, &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrMarshal, err)
	}

	return out, nil
}

// page decodes up to limit records under prefix after skipping offset of
// them. The total and the page come from the same snapshot.
func page[T any](d *Database, prefix []byte, offset, limit uint64) ([]T, uint64, error) {
	items := []T{}
	var total uint64
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			total++
			if total <= offset || uint64(len(items)) >= limit {
				continue
			}

			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("%w: %w", ErrMarshal, err)
			}
			items = append(items, v)
		}

		return nil
	})
	switch {
	case errors.Is(err, ErrMarshal):
		return nil, 0, err
	case err != nil:
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return items, total, nil
}
