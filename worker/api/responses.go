package api

import (
	"net/http"

	"github.com/absmach/fedanomaly/pkg/api"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/absmach/fedanomaly/worker"
)

var (
	_ api.Response = (*statusResponse)(nil)
	_ api.Response = (*roundResponse)(nil)
	_ api.Response = (*listRoundResponse)(nil)
	_ api.Response = (*reportResponse)(nil)
	_ api.Response = (*listReportResponse)(nil)
)

type statusResponse struct {
	worker.Status
}

func (s statusResponse) Code() int {
	return http.StatusOK
}

func (s statusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s statusResponse) Empty() bool {
	return false
}

type roundResponse struct {
	results.Round
}

func (r roundResponse) Code() int {
	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type listRoundResponse struct {
	results.Page[results.Round]
}

func (l listRoundResponse) Code() int {
	return http.StatusOK
}

func (l listRoundResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundResponse) Empty() bool {
	return false
}

type reportResponse struct {
	results.Report
}

func (r reportResponse) Code() int {
	return http.StatusOK
}

func (r reportResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r reportResponse) Empty() bool {
	return false
}

type listReportResponse struct {
	results.Page[results.Report]
}

func (l listReportResponse) Code() int {
	return http.StatusOK
}

func (l listReportResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listReportResponse) Empty() bool {
	return false
}
