package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	kithttp "github.com/go-kit/kit/transport/http"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType = "application/json"

	MaxLimitSize = 100
)

var (
	ErrValidation         = errors.New("entity not valid")
	ErrInvalidQueryParams = errors.New("invalid query parameters")
	ErrLimitSize          = errors.New("invalid limit size")
	ErrMissingID          = errors.New("missing entity id")
)

// Response is implemented by every payload that controls its own status
// code and headers.
type Response interface {
	Code() int
	Headers() map[string]string
	Empty() bool
}

type errorRes struct {
	Err string `json:"error"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, pkgerrors.ErrInvalidData):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrEntityExists):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if err := json.NewEncoder(w).Encode(errorRes{Err: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// LoggingErrorEncoder logs every request error before encoding it.
func LoggingErrorEncoder(logger *slog.Logger, enc kithttp.ErrorEncoder) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		logger.Warn("Request failed", slog.Any("error", err))
		enc(ctx, err, w)
	}
}

// ReadNumQuery parses the query parameter key, returning def when it is
// absent.
func ReadNumQuery[N uint64 | int64 | float64](r *http.Request, key string, def N) (N, error) {
	vals := r.URL.Query()[key]
	switch len(vals) {
	case 0:
		return def, nil
	case 1:
	default:
		return 0, ErrInvalidQueryParams
	}

	var (
		val any
		err error
	)
	switch any(def).(type) {
	case uint64:
		val, err = strconv.ParseUint(vals[0], 10, 64)
	case int64:
		val, err = strconv.ParseInt(vals[0], 10, 64)
	case float64:
		val, err = strconv.ParseFloat(vals[0], 64)
	}
	if err != nil {
		return 0, errors.Join(ErrInvalidQueryParams, err)
	}

	return val.(N), nil
}
