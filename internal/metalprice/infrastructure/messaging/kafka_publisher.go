// Package messaging 将快照刷新事件发布到消息总线
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

// MessageSender 消息发送能力，由 mq.KafkaProducer 实现
type MessageSender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// KafkaPublisher 快照事件发布者
type KafkaPublisher struct {
	sender MessageSender
	topic  string
}

func NewKafkaPublisher(sender MessageSender, topic string) *KafkaPublisher {
	if topic == "" {
		topic = "metal.price.snapshot"
	}
	return &KafkaPublisher{sender: sender, topic: topic}
}

// PublishSnapshot 以事件 ID 作为消息键发布
func (p *KafkaPublisher) PublishSnapshot(ctx context.Context, event domain.SnapshotRefreshedEvent) error {
	if err := p.sender.SendMessage(ctx, p.topic, event.EventID, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}
