package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicGraph)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	if err := pub.Publish(TopicGraph, "rebuilt", GraphSummary{Nodes: 3, Edges: 2, Ready: true}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case event := <-sub.Events():
		if event.Topic != TopicGraph || event.Type != "rebuilt" {
			t.Errorf("event = %+v, want graph/rebuilt", event)
		}
		var summary GraphSummary
		if err := json.Unmarshal(event.Data, &summary); err != nil {
			t.Fatalf("unmarshal event data: %v", err)
		}
		if summary.Nodes != 3 || !summary.Ready {
			t.Errorf("summary = %+v", summary)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestReplayLastBufferedEvent(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicCatalogStatus, TopicConfig{BufferSize: 5})

	for _, state := range []string{"loading", "building", "ready"} {
		if err := pub.Publish(TopicCatalogStatus, state, CatalogStatus{State: state}); err != nil {
			t.Fatalf("Publish(%s) error = %v", state, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicCatalogStatus)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	// With ReplayAll false only the latest state is replayed.
	select {
	case event := <-sub.Events():
		if event.Type != "ready" {
			t.Errorf("replayed event type = %s, want ready", event.Type)
		}
		if event.Version != 3 {
			t.Errorf("replayed event version = %d, want 3", event.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("no event replayed to late subscriber")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	if err := pub.Publish(TopicGraph, "rebuilt", nil); err == nil {
		t.Error("Publish() on a closed publisher should error")
	}
	if _, err := pub.Subscribe(context.Background(), TopicGraph); err == nil {
		t.Error("Subscribe() on a closed publisher should error")
	}
}

func TestWriteSSEFormat(t *testing.T) {
	var sb strings.Builder
	event := Event{Topic: TopicGraph, Type: "rebuilt", Data: json.RawMessage(`{"nodes":1}`), Version: 7}

	if err := WriteSSE(&sb, event); err != nil {
		t.Fatalf("WriteSSE() error = %v", err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, "data: ") || !strings.HasSuffix(out, "\n\n") {
		t.Errorf("SSE frame = %q, want data: ...\\n\\n", out)
	}
	if !strings.Contains(out, `"version":7`) {
		t.Errorf("SSE frame missing version: %q", out)
	}
}
