package predictor_test

import (
	"testing"

	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/stretchr/testify/assert"
)

func TestScheduleNonIncreasing(t *testing.T) {
	tests := []struct {
		name     string
		schedule predictor.Schedule
	}{
		{name: "constant", schedule: predictor.Schedule{Rate: 0.01}},
		{name: "immediate decay", schedule: predictor.Schedule{Rate: 0.01, DecayRate: 0.1}},
		{name: "delayed decay", schedule: predictor.Schedule{Rate: 0.001, DecayStart: 10, DecayRate: 0.05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := tt.schedule.At(0)
			assert.Equal(t, tt.schedule.Rate, prev)
			for e := 1; e < 100; e++ {
				lr := tt.schedule.At(e)
				assert.LessOrEqual(t, lr, prev)
				assert.Positive(t, lr)
				prev = lr
			}
		})
	}
}

func TestScheduleDecayStart(t *testing.T) {
	s := predictor.Schedule{Rate: 0.01, DecayStart: 5, DecayRate: 0.5}
	assert.Equal(t, 0.01, s.At(4))
	assert.Equal(t, 0.01, s.At(5))
	assert.Less(t, s.At(6), 0.01)
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, predictor.Schedule{Rate: 0.1}.Validate())
	assert.ErrorIs(t, predictor.Schedule{}.Validate(), predictor.ErrInvalidOptions)
	assert.ErrorIs(t, predictor.Schedule{Rate: 0.1, DecayRate: -1}.Validate(), predictor.ErrInvalidOptions)
}
