package testutil

import (
	"context"
	"testing"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/absmach/fedanomaly/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundRepository runs the behaviour every RoundRepository backend
// shares. Client IDs are random, so a shared database is fine.
func TestRoundRepository(t *testing.T, repo storage.RoundRepository) {
	t.Helper()
	ctx := context.Background()
	client := "client-" + uuid.NewString()

	t.Run("create and get", func(t *testing.T) {
		want := TestRound(client, 1)
		require.NoError(t, repo.Create(ctx, want))

		got, err := repo.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, normalizeRound(want), normalizeRound(got))
	})

	t.Run("duplicate ID", func(t *testing.T) {
		rd := TestRound(client, 2)
		require.NoError(t, repo.Create(ctx, rd))
		assert.ErrorIs(t, repo.Create(ctx, rd), pkgerrors.ErrEntityExists)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	})

	t.Run("list by client in round order", func(t *testing.T) {
		other := "client-" + uuid.NewString()
		for _, r := range []int{3, 1, 2} {
			require.NoError(t, repo.Create(ctx, TestRound(other, r)))
		}

		cases := []struct {
			desc   string
			offset uint64
			limit  uint64
			rounds []int
		}{
			{desc: "all", offset: 0, limit: 10, rounds: []int{1, 2, 3}},
			{desc: "first page", offset: 0, limit: 2, rounds: []int{1, 2}},
			{desc: "second page", offset: 2, limit: 2, rounds: []int{3}},
			{desc: "past the end", offset: 5, limit: 2, rounds: []int{}},
		}
		for _, tc := range cases {
			t.Run(tc.desc, func(t *testing.T) {
				got, total, err := repo.List(ctx, other, tc.offset, tc.limit)
				require.NoError(t, err)
				assert.Equal(t, uint64(3), total)

				rounds := make([]int, len(got))
				for i, rd := range got {
					assert.Equal(t, other, rd.ClientID)
					rounds[i] = rd.Round
				}
				assert.Equal(t, tc.rounds, rounds)
			})
		}
	})

	t.Run("list every client", func(t *testing.T) {
		_, total, err := repo.List(ctx, "", 0, 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, uint64(5))
	})
}

// TestReportRepository is the ReportRepository counterpart of
// TestRoundRepository.
func TestReportRepository(t *testing.T, repo storage.ReportRepository) {
	t.Helper()
	ctx := context.Background()
	client := "client-" + uuid.NewString()

	t.Run("create and get", func(t *testing.T) {
		want := TestReport(client, 3, "sequence")
		require.NoError(t, repo.Create(ctx, want))

		got, err := repo.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, normalizeReport(want), normalizeReport(got))
	})

	t.Run("duplicate ID", func(t *testing.T) {
		rp := TestReport(client, 3, "spectral")
		require.NoError(t, repo.Create(ctx, rp))
		assert.ErrorIs(t, repo.Create(ctx, rp), pkgerrors.ErrEntityExists)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	})

	t.Run("list orders by round and detector", func(t *testing.T) {
		other := "client-" + uuid.NewString()
		for _, rp := range []results.Report{
			TestReport(other, 2, "spectral"),
			TestReport(other, 1, "spectral"),
			TestReport(other, 2, "sequence"),
			TestReport(other, 1, "sequence"),
		} {
			require.NoError(t, repo.Create(ctx, rp))
		}

		got, total, err := repo.List(ctx, other, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), total)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Round)
		assert.Equal(t, "spectral", got[0].Detector)
		assert.Equal(t, 2, got[1].Round)
		assert.Equal(t, "sequence", got[1].Detector)
	})
}

func normalizeRound(r results.Round) results.Round {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	return r
}

func normalizeReport(r results.Report) results.Report {
	r.CreatedAt = r.CreatedAt.UTC()

	return r
}
