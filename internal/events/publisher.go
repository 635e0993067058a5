// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"meeting-session-service/internal/models"
	"meeting-session-service/internal/observability/metrics"
)

// Publisher publishes session and meeting events to separate Kafka topics.
// With Kafka disabled it runs in log-only mode, so callers never need to
// special-case a missing broker.
type Publisher struct {
	writerSessions *kafka.Writer
	writerMeetings *kafka.Writer
	principal      string
	topicSessions  string
	topicMeetings  string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicSessions string
	TopicMeetings string
	Principal     string
	Enabled       bool
}

// New creates a Kafka event publisher with separate topics for session
// transitions and saved meetings.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicSessions: cfg.TopicSessions,
			topicMeetings: cfg.TopicMeetings,
			enabled:       false,
			metrics:       m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerSessions := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSessions,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerMeetings := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicMeetings,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSessions", cfg.TopicSessions).
		Str("topicMeetings", cfg.TopicMeetings).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSessions: writerSessions,
		writerMeetings: writerMeetings,
		principal:      cfg.Principal,
		topicSessions:  cfg.TopicSessions,
		topicMeetings:  cfg.TopicMeetings,
		enabled:        true,
		metrics:        m,
	}
}

// PublishTransition publishes a connection state change, keyed by session
// so one session's transitions stay ordered within a partition.
func (p *Publisher) PublishTransition(ctx context.Context, ev models.SessionTransition) error {
	return p.publish(ctx, p.writerSessions, p.topicSessions, "transition", ev.SessionID, ev)
}

// PublishMeetingSaved publishes a confirmed meeting record, keyed by room.
func (p *Publisher) PublishMeetingSaved(ctx context.Context, ev models.MeetingSaved) error {
	return p.publish(ctx, p.writerMeetings, p.topicMeetings, "meeting-saved", ev.RoomID, ev)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerSessions != nil {
		if e := p.writerSessions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing sessions writer")
			err = e
		}
	}
	if p.writerMeetings != nil {
		if e := p.writerMeetings.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing meetings writer")
			err = e
		}
	}
	return err
}
