package mocks

import (
	"context"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/stretchr/testify/mock"
)

var _ trainer.Service = (*Service)(nil)

// Service is a mock implementation of the trainer.Service interface.
type Service struct {
	mock.Mock
}

// NewService creates a mock that asserts its expectations on cleanup.
func NewService(t interface {
	mock.TestingT
	Cleanup(func())
},
) *Service {
	m := &Service{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *Service) TrainRound(ctx context.Context, epochs int) (detector.Pair[predictor.History], error) {
	args := m.Called(ctx, epochs)
	return args.Get(0).(detector.Pair[predictor.History]), args.Error(1)
}

func (m *Service) ExportParameters(ctx context.Context) (detector.Pair[predictor.Snapshot], error) {
	args := m.Called(ctx)
	return args.Get(0).(detector.Pair[predictor.Snapshot]), args.Error(1)
}

func (m *Service) ImportParameters(ctx context.Context, p detector.Pair[predictor.Snapshot]) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *Service) Persist(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

func (m *Service) Restore(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

func (m *Service) Evaluate(ctx context.Context) (detector.Pair[trainer.Report], error) {
	args := m.Called(ctx)
	return args.Get(0).(detector.Pair[trainer.Report]), args.Error(1)
}

func (m *Service) History(ctx context.Context) (detector.Pair[predictor.History], error) {
	args := m.Called(ctx)
	return args.Get(0).(detector.Pair[predictor.History]), args.Error(1)
}
