// Package pubsub carries analyzer state changes (catalog reloads, graph
// rebuilds) to in-process and SSE subscribers.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topic names used across the analyzer.
const (
	TopicCatalogStatus = "catalog_status"
	TopicGraph         = "graph"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic ("catalog_status", "graph")
	Type    string          `json:"type"`    // Event type (e.g., "loading", "rebuilt", "error")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// CatalogStatus describes where a reload/rebuild pass currently stands.
type CatalogStatus struct {
	State   string `json:"state"`   // loading, building, ready, error
	Message string `json:"message"` // Human-readable status message
}

// GraphSummary is published after every rebuild.
type GraphSummary struct {
	Nodes   int  `json:"nodes"`
	Edges   int  `json:"edges"`
	Orphans int  `json:"orphans"`
	Ready   bool `json:"ready"`
}
