package mqtt_test

import (
	"context"
	"testing"

	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestTopics(t *testing.T) {
	cases := []struct {
		desc   string
		topic  string
		expect string
	}{
		{desc: "rounds", topic: mqtt.RoundsTopic("Bearing-1"), expect: "fedanomaly/bearing-1/rounds"},
		{desc: "reports", topic: mqtt.ReportsTopic("bearing-1"), expect: "fedanomaly/bearing-1/reports"},
		{desc: "status", topic: mqtt.StatusTopic("a/b+#"), expect: "fedanomaly/a_b__/status"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.topic)
		})
	}
}

func TestEventsPublish(t *testing.T) {
	ctx := context.Background()
	ps := new(mocks.PubSub)
	ps.On("Publish", mock.Anything, "fedanomaly/c1/rounds", "round").Return(nil).Once()
	ps.On("Publish", mock.Anything, "fedanomaly/c1/reports", "report").Return(assert.AnError).Once()
	ps.On("Publish", mock.Anything, "fedanomaly/c1/status", "done").Return(nil).Once()

	e := mqtt.NewEvents(ps, "c1")
	assert.True(t, e.Enabled())
	assert.NoError(t, e.Round(ctx, "round"))
	assert.ErrorIs(t, e.Reports(ctx, "report"), assert.AnError)
	assert.NoError(t, e.Status(ctx, "done"))
	ps.AssertExpectations(t)
}

func TestEventsDisabled(t *testing.T) {
	var e mqtt.Events
	assert.False(t, e.Enabled())
	assert.NoError(t, e.Round(context.Background(), "round"))
	assert.NoError(t, e.Reports(context.Background(), "report"))
	assert.NoError(t, e.Status(context.Background(), "done"))
}
