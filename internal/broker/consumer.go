package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// ErrMissingSubject is returned for messages without a userId.
var ErrMissingSubject = errors.New("message has no subject")

// Publisher fans a payload out to one subject's push connections.
type Publisher interface {
	Publish(ctx context.Context, subjectID, topic string, payload any) (int, error)
}

// Relay consumes analysis results and notifications from Kafka and forwards
// them to the owning subject over the push hub.
type Relay struct {
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewRelay(publisher Publisher, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("analysis-relay"),
	}
}

// Topics lists the Kafka topics the relay consumes.
func (r *Relay) Topics() []string {
	return []string{TopicAnalysisFeedback, TopicNotification}
}

// HandleMessage forwards one Kafka message. Subjects without an open
// connection simply receive nothing; that is not an error.
func (r *Relay) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx, span := r.tracer.Start(ctx, "relay.handle_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.source", msg.Topic),
		attribute.Int64("messaging.offset", msg.Offset),
	)

	var (
		subjectID string
		pushTopic string
		payload   any
	)
	switch msg.Topic {
	case TopicAnalysisFeedback:
		var fb models.AnalysisFeedback
		if err := json.Unmarshal(msg.Value, &fb); err != nil {
			return fmt.Errorf("failed to decode analysis feedback: %w", err)
		}
		subjectID, pushTopic, payload = fb.SubjectID, models.TopicFeedback, fb
	case TopicNotification:
		var n models.Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			return fmt.Errorf("failed to decode notification: %w", err)
		}
		subjectID, pushTopic, payload = n.SubjectID, models.TopicNotifications, n
	default:
		return fmt.Errorf("unexpected topic %q", msg.Topic)
	}

	if subjectID == "" {
		return ErrMissingSubject
	}
	span.SetAttributes(attribute.String("user.id", subjectID))

	delivered, err := r.publisher.Publish(ctx, subjectID, pushTopic, payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to push %s: %w", pushTopic, err)
	}

	r.logger.Info("relayed message",
		zap.String("kafka_topic", msg.Topic),
		zap.String("user_id", subjectID),
		zap.Int("connections", delivered),
	)
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (r *Relay) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (r *Relay) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler. Undecodable messages
// are logged and committed so they do not block the partition.
func (r *Relay) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := r.HandleMessage(session.Context(), msg); err != nil {
				r.logger.Error("failed to relay message",
					zap.String("kafka_topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Run consumes with group until ctx is cancelled. Consume returns on every
// rebalance, so it is called in a loop.
func (r *Relay) Run(ctx context.Context, group sarama.ConsumerGroup) error {
	go func() {
		for err := range group.Errors() {
			r.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := group.Consume(ctx, r.Topics(), r); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consumer group failed: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
