package api

import (
	"context"
	"errors"

	"github.com/absmach/fedanomaly/pkg/api"
	pkgerrors "github.com/absmach/fedanomaly/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func statusEndpoint(sr StatusReader) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return statusResponse{Status: sr.Status()}, nil
	}
}

func listRoundsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listRoundResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundResponse{}, errors.Join(api.ErrValidation, err)
		}

		page, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundResponse{}, err
		}

		return listRoundResponse{Page: page}, nil
	}
}

func getRoundEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(api.ErrValidation, err)
		}

		round, err := svc.GetRound(ctx, req.id)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{Round: round}, nil
	}
}

func listReportsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listReportResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listReportResponse{}, errors.Join(api.ErrValidation, err)
		}

		page, err := svc.ListReports(ctx, req.offset, req.limit)
		if err != nil {
			return listReportResponse{}, err
		}

		return listReportResponse{Page: page}, nil
	}
}

func getReportEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return reportResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return reportResponse{}, errors.Join(api.ErrValidation, err)
		}

		report, err := svc.GetReport(ctx, req.id)
		if err != nil {
			return reportResponse{}, err
		}

		return reportResponse{Report: report}, nil
	}
}
