package mqtt

import (
	"context"
	"fmt"
	"strings"
)

const topicRoot = "fedanomaly"

func RoundsTopic(clientID string) string {
	return fmt.Sprintf("%s/%s/rounds", topicRoot, topicSegment(clientID))
}

func ReportsTopic(clientID string) string {
	return fmt.Sprintf("%s/%s/reports", topicRoot, topicSegment(clientID))
}

func StatusTopic(clientID string) string {
	return fmt.Sprintf("%s/%s/status", topicRoot, topicSegment(clientID))
}

// AllRounds and AllReports match the events of every client.
const (
	AllRounds  = topicRoot + "/+/rounds"
	AllReports = topicRoot + "/+/reports"
)

// topicSegment keeps client names from introducing topic levels or
// wildcards.
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(strings.ToLower(s))
}

// Events publishes worker events for one client. A zero Events, or one
// without a PubSub, drops everything.
type Events struct {
	pubsub   PubSub
	clientID string
}

func NewEvents(ps PubSub, clientID string) Events {
	return Events{pubsub: ps, clientID: clientID}
}

func (e Events) Enabled() bool {
	return e.pubsub != nil
}

func (e Events) Round(ctx context.Context, msg any) error {
	if e.pubsub == nil {
		return nil
	}

	return e.pubsub.Publish(ctx, RoundsTopic(e.clientID), msg)
}

func (e Events) Reports(ctx context.Context, msg any) error {
	if e.pubsub == nil {
		return nil
	}

	return e.pubsub.Publish(ctx, ReportsTopic(e.clientID), msg)
}

func (e Events) Status(ctx context.Context, msg any) error {
	if e.pubsub == nil {
		return nil
	}

	return e.pubsub.Publish(ctx, StatusTopic(e.clientID), msg)
}
