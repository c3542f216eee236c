package api

import "github.com/absmach/fedanomaly/pkg/api"

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return api.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit == 0 || e.limit > api.MaxLimitSize {
		return api.ErrLimitSize
	}

	return nil
}
