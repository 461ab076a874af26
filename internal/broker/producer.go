package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// Topics shared with the analysis service.
const (
	TopicAnalysisRequest  = "resume_analysis_request"
	TopicAnalysisFeedback = "analysis_feedback_topic"
	TopicNotification     = "notification_topic"
)

// Producer publishes resume analysis requests.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewProducer wraps an existing sarama producer. topic defaults to
// TopicAnalysisRequest.
func NewProducer(p sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	if topic == "" {
		topic = TopicAnalysisRequest
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		producer: p,
		topic:    topic,
		logger:   logger,
		tracer:   otel.Tracer("analysis-producer"),
	}
}

// DialProducer connects a synchronous producer to brokers.
func DialProducer(brokers []string, cfg *sarama.Config, topic string, logger *zap.Logger) (*Producer, error) {
	if cfg == nil {
		cfg = NewSaramaConfig("")
	}
	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducer(p, topic, logger), nil
}

// PublishAnalysisRequest sends req keyed by subject so requests of one
// subject stay ordered.
func (p *Producer) PublishAnalysisRequest(ctx context.Context, req models.AnalysisRequest) error {
	_, span := p.tracer.Start(ctx, "broker.publish_analysis_request")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.SubjectID),
		attribute.String("messaging.destination", p.topic),
	)

	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(req.SubjectID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish analysis request: %w", err)
	}

	p.logger.Debug("analysis request published",
		zap.String("user_id", req.SubjectID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}

// NewSaramaConfig returns the client settings used by both the producer and
// the consumer group.
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}
