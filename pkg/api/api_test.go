package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedanomaly/pkg/api"
	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type created struct {
	ID string `json:"id"`
}

func (created) Code() int { return http.StatusCreated }
func (c created) Headers() map[string]string { return map[string]string{"Location": "/rounds/" + c.ID} }
func (created) Empty() bool { return false }

func TestEncodeResponse(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, api.EncodeResponse(context.Background(), w, created{ID: "r1"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/rounds/r1", w.Header().Get("Location"))
	assert.Equal(t, api.ContentType, w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"r1"}`, w.Body.String())
}

func TestEncodeError(t *testing.T) {
	cases := []struct {
		desc string
		err  error
		code int
	}{
		{desc: "validation", err: errors.Join(api.ErrValidation, api.ErrLimitSize), code: http.StatusBadRequest},
		{desc: "invalid request data", err: fmt.Errorf("%w: bad body", pkgerrors.ErrInvalidData), code: http.StatusBadRequest},
		{desc: "empty id", err: pkgerrors.ErrEmptyKey, code: http.StatusBadRequest},
		{desc: "duplicate record", err: fmt.Errorf("%w: r1", pkgerrors.ErrEntityExists), code: http.StatusConflict},
		{desc: "not found", err: pkgerrors.ErrNotFound, code: http.StatusNotFound},
		{desc: "internal", err: errors.New("disk on fire"), code: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.EncodeError(context.Background(), tc.err, w)

			assert.Equal(t, tc.code, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestReadNumQuery(t *testing.T) {
	cases := []struct {
		desc  string
		query string
		want  uint64
		err   error
	}{
		{desc: "absent", query: "", want: 7},
		{desc: "present", query: "limit=20", want: 20},
		{desc: "not a number", query: "limit=ten", err: api.ErrInvalidQueryParams},
		{desc: "negative", query: "limit=-1", err: api.ErrInvalidQueryParams},
		{desc: "repeated", query: "limit=1&limit=2", err: api.ErrInvalidQueryParams},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/rounds?"+tc.query, http.NoBody)
			got, err := api.ReadNumQuery[uint64](r, api.LimitKey, 7)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	api.Health("worker", "instance-1")(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	var info api.HealthInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "pass", info.Status)
	assert.Equal(t, "instance-1", info.InstanceID)
	assert.Equal(t, "worker service", info.Description)
}
