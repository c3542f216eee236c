package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/absmach/fedanomaly/pkg/storage"
	"github.com/absmach/fedanomaly/worker"
	"github.com/absmach/fedanomaly/worker/api"
	"github.com/absmach/fedanomaly/worker/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientID = "FD001"

type fixedStatus worker.Status

func (s fixedStatus) Status() worker.Status {
	return worker.Status(s)
}

func newServer(t *testing.T, rounds int) (*httptest.Server, *storage.Repositories) {
	t.Helper()
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := recorder.New(clientID, repos.Rounds, repos.Reports, mqtt.Events{}, logger)
	for i := range rounds {
		rec.Observe(context.Background(), worker.RoundStats{
			ClientID:   clientID,
			Round:      i + 1,
			Epochs:     1,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
	}

	status := fixedStatus{ClientID: clientID, State: worker.Downloading, Round: rounds, Rounds: 10}
	ts := httptest.NewServer(api.MakeHandler(status, rec, logger, "worker", "instance-1"))
	t.Cleanup(ts.Close)

	return ts, repos
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestStatus(t *testing.T) {
	ts, _ := newServer(t, 2)

	code, body := get(t, ts.URL+"/status")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"client_id":"FD001","state":"downloading","round":2,"rounds":10}`, string(body))
}

func TestListRounds(t *testing.T) {
	ts, _ := newServer(t, 5)

	cases := []struct {
		desc   string
		query  string
		code   int
		rounds []int
	}{
		{desc: "default page", query: "", code: http.StatusOK, rounds: []int{1, 2, 3, 4, 5}},
		{desc: "offset and limit", query: "?offset=3&limit=1", code: http.StatusOK, rounds: []int{4}},
		{desc: "offset past end", query: "?offset=9", code: http.StatusOK, rounds: []int{}},
		{desc: "zero limit", query: "?limit=0", code: http.StatusBadRequest},
		{desc: "limit too large", query: "?limit=1000", code: http.StatusBadRequest},
		{desc: "invalid offset", query: "?offset=first", code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			code, body := get(t, ts.URL+"/rounds"+tc.query)
			require.Equal(t, tc.code, code, string(body))
			if tc.code != http.StatusOK {
				return
			}

			var page results.Page[results.Round]
			require.NoError(t, json.Unmarshal(body, &page))
			assert.Equal(t, uint64(5), page.Total)
			got := make([]int, 0, len(page.Items))
			for _, r := range page.Items {
				got = append(got, r.Round)
			}
			assert.Equal(t, tc.rounds, got)
		})
	}
}

func TestGetRound(t *testing.T) {
	ts, repos := newServer(t, 1)
	rounds, _, err := repos.Rounds.List(context.Background(), clientID, 0, 1)
	require.NoError(t, err)
	require.Len(t, rounds, 1)

	code, body := get(t, ts.URL+"/rounds/"+rounds[0].ID)
	require.Equal(t, http.StatusOK, code)
	var got results.Round
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, rounds[0].ID, got.ID)
	assert.Equal(t, 1, got.Round)

	code, _ = get(t, ts.URL+"/rounds/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReportsEmpty(t *testing.T) {
	ts, _ := newServer(t, 0)

	code, body := get(t, ts.URL+"/reports")
	require.Equal(t, http.StatusOK, code)
	var page results.Page[results.Report]
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)

	code, _ = get(t, ts.URL+"/reports/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newServer(t, 0)

	code, _ := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
}
