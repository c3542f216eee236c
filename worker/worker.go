// Package worker drives the federated training rounds of one client.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
)

var (
	ErrTraining      = errors.New("training phase failed")
	ErrUpload        = errors.New("upload phase failed")
	ErrDownload      = errors.New("download phase failed")
	ErrPersist       = errors.New("persist phase failed")
	ErrInvalidConfig = errors.New("invalid worker config")
)

type State uint8

const (
	Idle State = iota
	LocalTraining
	Uploading
	Downloading
	Saved
	Terminal
	// Failed is entered when a phase fails. Nothing leaves it.
	Failed
)

var stateNames = map[State]string{
	Idle:          "idle",
	LocalTraining: "local_training",
	Uploading:     "uploading",
	Downloading:   "downloading",
	Saved:         "saved",
	Terminal:      "terminal",
	Failed:        "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return fmt.Sprintf("unknown(%d)", uint8(s))
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Conn is the framed connection to the aggregator.
type Conn interface {
	Send(payload []byte) error
	Recv() ([]byte, error)
	BytesSent() uint64
	BytesReceived() uint64
}

type Config struct {
	ClientID       string
	Rounds         int
	EpochsPerRound int
	// ModelDir receives both model files after the last round.
	ModelDir string
}

func (c Config) Validate() error {
	switch {
	case c.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be positive", ErrInvalidConfig)
	case c.EpochsPerRound <= 0:
		return fmt.Errorf("%w: epochs per round must be positive", ErrInvalidConfig)
	case c.ModelDir == "":
		return fmt.Errorf("%w: empty model directory", ErrInvalidConfig)
	}

	return nil
}

// RoundStats describes one completed round.
type RoundStats struct {
	ClientID      string                           `json:"client_id"`
	Round         int                              `json:"round"`
	Epochs        int                              `json:"epochs"`
	History       detector.Pair[predictor.History] `json:"-"`
	BytesSent     uint64                           `json:"bytes_sent"`
	BytesReceived uint64                           `json:"bytes_received"`
	Training      time.Duration                    `json:"training"`
	Upload        time.Duration                    `json:"upload"`
	Download      time.Duration                    `json:"download"`
	StartedAt     time.Time                        `json:"started_at"`
	FinishedAt    time.Time                        `json:"finished_at"`
}

// Status is a point-in-time view of a controller.
type Status struct {
	ClientID string `json:"client_id"`
	State    State  `json:"state"`
	Round    int    `json:"round"`
	Rounds   int    `json:"rounds"`
}

// Observer is notified after every completed round. It runs on the
// controller goroutine and must not block for long.
type Observer func(ctx context.Context, stats RoundStats)
