package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/storage"
	"github.com/absmach/fedanomaly/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositories(t *testing.T) {
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	assert.NoError(t, repos.Close())

	testutil.TestRoundRepository(t, repos.Rounds)
	testutil.TestReportRepository(t, repos.Reports)
}

func TestNewRepositories(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		desc string
		cfg  storage.Config
		err  error
	}{
		{
			desc: "memory",
			cfg:  storage.Config{Type: "memory"},
		},
		{
			desc: "sqlite",
			cfg:  storage.Config{Type: "sqlite", SQLitePath: filepath.Join(dir, "nested", "results.db")},
		},
		{
			desc: "badger",
			cfg:  storage.Config{Type: "badger", BadgerPath: filepath.Join(dir, "badger")},
		},
		{
			desc: "unknown",
			cfg:  storage.Config{Type: "cassandra"},
			err:  storage.ErrUnsupportedType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			repos, err := storage.NewRepositories(tc.cfg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			defer repos.Close()

			rd := testutil.TestRound("bearing-1", 1)
			require.NoError(t, repos.Rounds.Create(context.Background(), rd))
			_, total, err := repos.Rounds.List(context.Background(), "bearing-1", 0, 10)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), total)
		})
	}
}

func TestMemoryRepositoriesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	b, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	rd := testutil.TestRound("bearing-1", 1)
	require.NoError(t, a.Rounds.Create(ctx, rd))

	_, err = b.Rounds.Get(ctx, rd.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	_, err = a.Rounds.Get(ctx, "")
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyKey)

	rd.ID = ""
	assert.ErrorIs(t, a.Rounds.Create(ctx, rd), pkgerrors.ErrEmptyKey)
}
