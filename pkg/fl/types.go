package fl

import (
	"time"

	"github.com/absmach/fedanomaly/pkg/predictor"
)

// RoundState records one aggregation round.
type RoundState struct {
	RoundID      string    `json:"round_id"`
	Round        int       `json:"round"`
	Participants int       `json:"participants"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time,omitzero"`
	Updates      []Update  `json:"updates"`
	Completed    bool      `json:"completed"`
}

// Update is one participant's parameters for one detector.
type Update struct {
	RoundID       string             `json:"round_id"`
	ParticipantID string             `json:"participant_id"`
	Detector      string             `json:"detector"`
	NumSamples    int                `json:"num_samples"`
	Bytes         int                `json:"bytes"`
	ReceivedAt    time.Time          `json:"received_at"`
	Tensors       []predictor.Tensor `json:"-"`
}

// Model is the merged parameter set for one detector.
type Model struct {
	Detector string             `json:"detector"`
	Tensors  []predictor.Tensor `json:"-"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

type Aggregator interface {
	Aggregate(updates []Update) (Model, error)
}
