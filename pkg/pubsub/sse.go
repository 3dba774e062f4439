package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/whatevertogo/asset-analyzer/pkg/logging"
)

// TopicConfig controls what a topic retains for late subscribers.
type TopicConfig struct {
	BufferSize int  // events retained per topic, 0 disables buffering
	ReplayAll  bool // replay the whole buffer instead of just the last event
}

// topicState bundles everything the publisher tracks per topic: its
// configuration, a monotonically increasing version, the retained
// events, and the live subscriptions.
type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// SSEPublisher fans events out to in-process subscribers and retains
// recent ones so late SSE clients start from the current state instead
// of waiting for the next change.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a publisher with no configured topics.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// topic returns the state for a topic, creating it on first touch.
// Callers hold p.mu.
func (p *SSEPublisher) topic(name string) *topicState {
	st, ok := p.topics[name]
	if !ok {
		st = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = st
	}
	return st
}

// ConfigureTopic sets the buffering behavior for one topic.
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscriber on a topic and replays the retained
// events into it. The subscription ends when the context does.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("publisher is closed")
	}

	st := p.topic(topic)
	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, 100),
		publisher: p,
	}
	st.subs[sub] = struct{}{}

	replay := st.buffer
	if !st.config.ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("replay exceeds subscriber capacity, dropping event", "topic", topic)
		}
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish marshals data and delivers one event to every subscriber of
// the topic. A slow subscriber drops events rather than stalling the
// publisher; buffered topics retain the event for late subscribers.
func (p *SSEPublisher) Publish(topic string, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	st := p.topic(topic)
	st.version++
	event := Event{Topic: topic, Type: eventType, Data: payload, Version: st.version}

	if st.config.BufferSize > 0 {
		st.buffer = append(st.buffer, event)
		if len(st.buffer) > st.config.BufferSize {
			st.buffer = st.buffer[len(st.buffer)-st.config.BufferSize:]
		}
	}

	for sub := range st.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber lagging, dropping event", "topic", topic, "type", eventType)
		}
	}
	return nil
}

// Close shuts the publisher down, closing every subscription channel.
// Further Publish and Subscribe calls fail.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for _, st := range p.topics {
		for sub := range st.subs {
			close(sub.events)
		}
		st.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.topics[sub.topic]; ok {
		delete(st.subs, sub)
	}
}

// sseSubscription is one subscriber's view of a topic.
type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) Topic() string { return s.topic }

func (s *sseSubscription) Events() <-chan Event { return s.events }

// Close detaches the subscription from the publisher. Safe to call more
// than once; the context goroutine and explicit callers may race here.
func (s *sseSubscription) Close() error {
	s.once.Do(func() { s.publisher.unsubscribe(s) })
	return nil
}

// WriteSSE frames one event for an SSE stream: "data: {json}\n\n".
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
