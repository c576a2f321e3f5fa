package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// Subjects used on the broker. Jobs are work-queued for the analysis
// workers; events fan out to anyone watching a report's lifecycle;
// upstream status carries the sentinel's probe results.
const (
	SubjectJobs        = "basin.analysis.jobs"
	SubjectEventPrefix = "basin.analysis.events."
	SubjectBroadcast   = "basin.updates.broadcast"
	SubjectUpstream    = "basin.upstream.status"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "ANALYSIS_JOBS",
			Subjects:  []string{SubjectJobs},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "ANALYSIS_EVENTS",
			Subjects:  []string{SubjectEventPrefix + ">"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishAnalysisJob(ctx context.Context, job *domain.AnalysisJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectJobs, data)
	return err
}

func (p *Publisher) PublishAnalysisEvent(ctx context.Context, event *domain.AnalysisEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// "analysis.completed" → basin.analysis.events.completed
	suffix := strings.TrimPrefix(event.Type, "analysis.")
	_, err = p.js.Publish(SubjectEventPrefix+suffix, data)
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(SubjectBroadcast, data)
}

// PublishUpstreamStatus pushes a probe result to watchers. Core NATS,
// not JetStream: stale status is worthless, so nothing is retained.
func (p *Publisher) PublishUpstreamStatus(ctx context.Context, status *domain.UpstreamStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectUpstream, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
