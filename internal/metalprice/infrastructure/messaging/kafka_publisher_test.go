package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

type sent struct {
	topic, key string
	value      any
}

type fakeSender struct {
	msgs []sent
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, topic, key string, value any) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{topic, key, value})
	return nil
}

func TestPublishSnapshot(t *testing.T) {
	sender := &fakeSender{}
	p := NewKafkaPublisher(sender, "")

	event := domain.SnapshotRefreshedEvent{EventID: "evt-1", EventType: domain.SnapshotRefreshedEventType}
	if err := p.PublishSnapshot(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("sent %d messages", len(sender.msgs))
	}
	got := sender.msgs[0]
	if got.topic != "metal.price.snapshot" || got.key != "evt-1" {
		t.Fatalf("message = %+v", got)
	}
	if v, ok := got.value.(domain.SnapshotRefreshedEvent); !ok || v.EventID != "evt-1" {
		t.Fatalf("value = %#v", got.value)
	}
}

func TestPublishSnapshotError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&fakeSender{err: boom}, "t")
	if err := p.PublishSnapshot(context.Background(), domain.SnapshotRefreshedEvent{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
