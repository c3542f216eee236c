package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/absmach/fedanomaly/pkg/api"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func MakeHandler(sr StatusReader, svc Service, logger *slog.Logger, svcName, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(api.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(sr),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "get-status").ServeHTTP)

	mux.Route("/rounds", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)
		r.Get("/{roundID}", otelhttp.NewHandler(kithttp.NewServer(
			getRoundEndpoint(svc),
			decodeEntityReq("roundID"),
			api.EncodeResponse,
			opts...,
		), "get-round").ServeHTTP)
	})

	mux.Route("/reports", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listReportsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-reports").ServeHTTP)
		r.Get("/{reportID}", otelhttp.NewHandler(kithttp.NewServer(
			getReportEndpoint(svc),
			decodeEntityReq("reportID"),
			api.EncodeResponse,
			opts...,
		), "get-report").ServeHTTP)
	})

	mux.Get("/health", api.Health(svcName, instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := api.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	l, err := api.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}
