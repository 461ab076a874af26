package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PushMetrics provides metrics collection for the push hub.
// A nil *PushMetrics records nothing.
type PushMetrics struct {
	connectionsActiveGauge  metric.Int64UpDownCounter
	deliveriesCounter       metric.Int64Counter
	deliveriesFailedCounter metric.Int64Counter
}

// NewPushMetrics creates a new push hub metrics collector
func NewPushMetrics() (*PushMetrics, error) {
	connectionsActiveGauge, err := meter.Int64UpDownCounter(
		"coverletter.push.connections.active",
		metric.WithDescription("Number of currently open push connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	deliveriesCounter, err := meter.Int64Counter(
		"coverletter.push.deliveries",
		metric.WithDescription("Total number of frames queued for delivery"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}

	deliveriesFailedCounter, err := meter.Int64Counter(
		"coverletter.push.deliveries.failed",
		metric.WithDescription("Total number of frames that could not be delivered"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}

	return &PushMetrics{
		connectionsActiveGauge:  connectionsActiveGauge,
		deliveriesCounter:       deliveriesCounter,
		deliveriesFailedCounter: deliveriesFailedCounter,
	}, nil
}

// RecordConnectionOpened records a new push connection
func (pm *PushMetrics) RecordConnectionOpened(ctx context.Context) {
	if pm == nil {
		return
	}
	pm.connectionsActiveGauge.Add(ctx, 1)
}

// RecordConnectionClosed records a closed push connection
func (pm *PushMetrics) RecordConnectionClosed(ctx context.Context) {
	if pm == nil {
		return
	}
	pm.connectionsActiveGauge.Add(ctx, -1)
}

// RecordDelivery records a frame queued for a subscribed connection
func (pm *PushMetrics) RecordDelivery(ctx context.Context, topic string) {
	if pm == nil {
		return
	}
	pm.deliveriesCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("push.topic", topic)),
	)
}

// RecordDeliveryFailed records a frame that was dropped
func (pm *PushMetrics) RecordDeliveryFailed(ctx context.Context, topic, reason string) {
	if pm == nil {
		return
	}
	pm.deliveriesFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("push.topic", topic),
			attribute.String("error.type", reason),
		),
	)
}
