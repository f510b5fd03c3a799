package mq

import (
	"context"
	"testing"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(KafkaConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestSendMessageRejectsUnmarshalableValue(t *testing.T) {
	p, err := NewProducer(KafkaConfig{Brokers: []string{"127.0.0.1:1"}, MaxRetries: 1})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	defer p.Close()

	if err := p.SendMessage(context.Background(), "t", "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
