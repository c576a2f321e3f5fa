package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeAnalysisJobs consumes the work queue of pending analyses.
// All workers share one durable consumer, so each queued job is
// delivered to exactly one of them; a job is redelivered up to three
// times before the stream gives up on it.
func (s *Subscriber) SubscribeAnalysisJobs(ctx context.Context, handler func(ctx context.Context, job *domain.AnalysisJob) error) error {
	sub, err := s.js.Subscribe(SubjectJobs, func(msg *nats.Msg) {
		var job domain.AnalysisJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &job); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("analysis-worker"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeAnalysisEvents follows report lifecycle events.
func (s *Subscriber) SubscribeAnalysisEvents(ctx context.Context, handler func(ctx context.Context, event *domain.AnalysisEvent) error) error {
	sub, err := s.js.Subscribe(SubjectEventPrefix+">", func(msg *nats.Msg) {
		var event domain.AnalysisEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("event-follower"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
