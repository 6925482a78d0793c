package main

import "github.com/cskr/pubsub"

const (
	// Event topics
	EventDeploymentQueued  = "DEPLOYMENT_QUEUED"
	EventDeploymentUpdated = "DEPLOYMENT_UPDATED"
)

type event struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

func newEventBus() *pubsub.PubSub {
	return pubsub.New(10)
}
