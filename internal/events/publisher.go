// Package events publishes conversation events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes turn and call-summary events to separate Kafka topics.
// Messages are keyed by phone number so one caller's events stay ordered.
type Publisher struct {
	writerTurns     messageWriter
	writerSummaries messageWriter
	principal       string
	topicTurns      string
	topicSummaries  string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicTurns     string
	TopicSummaries string
	Principal      string
	Enabled        bool
}

// New creates a new Kafka event publisher. A nil or disabled config yields a
// log-only publisher.
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
			principal:      cfg.Principal,
			topicTurns:     cfg.TopicTurns,
			topicSummaries: cfg.TopicSummaries,
			enabled:        false,
			metrics:        m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurns", cfg.TopicTurns).
		Str("topicSummaries", cfg.TopicSummaries).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTurns:     newWriter(cfg.TopicTurns),
		writerSummaries: newWriter(cfg.TopicSummaries),
		principal:       cfg.Principal,
		topicTurns:      cfg.TopicTurns,
		topicSummaries:  cfg.TopicSummaries,
		enabled:         true,
		metrics:         m,
	}
}

// PublishTurn publishes a completed-turn event.
func (p *Publisher) PublishTurn(ctx context.Context, event models.TurnCompleted) error {
	return p.publish(ctx, p.writerTurns, p.topicTurns, models.EventTurnCompleted, event.PhoneNumber, event)
}

// PublishSummary publishes an end-of-call summary event.
func (p *Publisher) PublishSummary(ctx context.Context, event models.CallSummarized) error {
	return p.publish(ctx, p.writerSummaries, p.topicSummaries, models.EventCallSummarized, event.PhoneNumber, event)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("eventType", eventType).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
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
			Str("eventType", eventType).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTurns != nil {
		if e := p.writerTurns.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing turn writer")
			err = e
		}
	}
	if p.writerSummaries != nil {
		if e := p.writerSummaries.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing summary writer")
			err = e
		}
	}
	return err
}
