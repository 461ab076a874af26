package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("coverletter-metrics")

// WorkflowMetrics provides metrics collection for guided workflow sessions.
// A nil *WorkflowMetrics records nothing.
type WorkflowMetrics struct {
	sessionsStartedCounter   metric.Int64Counter
	sessionsFinishedCounter  metric.Int64Counter
	stepTransitionsCounter   metric.Int64Counter
	feedbackReceivedCounter  metric.Int64Counter
	feedbackDroppedCounter   metric.Int64Counter
	sessionDurationHistogram metric.Float64Histogram
}

// NewWorkflowMetrics creates a new workflow metrics collector
func NewWorkflowMetrics() (*WorkflowMetrics, error) {
	sessionsStartedCounter, err := meter.Int64Counter(
		"coverletter.sessions.started",
		metric.WithDescription("Total number of workflow sessions started"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	sessionsFinishedCounter, err := meter.Int64Counter(
		"coverletter.sessions.finished",
		metric.WithDescription("Total number of workflow sessions finished"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	stepTransitionsCounter, err := meter.Int64Counter(
		"coverletter.step.transitions",
		metric.WithDescription("Total number of step transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	feedbackReceivedCounter, err := meter.Int64Counter(
		"coverletter.feedback.received",
		metric.WithDescription("Total number of analysis feedback messages applied"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	feedbackDroppedCounter, err := meter.Int64Counter(
		"coverletter.feedback.dropped",
		metric.WithDescription("Total number of analysis feedback messages dropped on a full queue"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	sessionDurationHistogram, err := meter.Float64Histogram(
		"coverletter.session.duration",
		metric.WithDescription("Duration of a workflow session from start to finish in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &WorkflowMetrics{
		sessionsStartedCounter:   sessionsStartedCounter,
		sessionsFinishedCounter:  sessionsFinishedCounter,
		stepTransitionsCounter:   stepTransitionsCounter,
		feedbackReceivedCounter:  feedbackReceivedCounter,
		feedbackDroppedCounter:   feedbackDroppedCounter,
		sessionDurationHistogram: sessionDurationHistogram,
	}, nil
}

// RecordSessionStarted records a new workflow session
func (wm *WorkflowMetrics) RecordSessionStarted(ctx context.Context, sessionID string) {
	if wm == nil {
		return
	}
	wm.sessionsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

// RecordSessionFinished records a finished session and how long it took
func (wm *WorkflowMetrics) RecordSessionFinished(ctx context.Context, sessionID string, jobSkipped bool, duration time.Duration) {
	if wm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Bool("job.skipped", jobSkipped),
	)
	wm.sessionsFinishedCounter.Add(ctx, 1, attrs)
	wm.sessionDurationHistogram.Record(ctx, duration.Seconds(), attrs)
}

// RecordStepTransition records a move between workflow steps
func (wm *WorkflowMetrics) RecordStepTransition(ctx context.Context, from, to int) {
	if wm == nil {
		return
	}
	wm.stepTransitionsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Int("step.from", from),
			attribute.Int("step.to", to),
		),
	)
}

// RecordFeedbackReceived records feedback applied to a session
func (wm *WorkflowMetrics) RecordFeedbackReceived(ctx context.Context, step int) {
	if wm == nil {
		return
	}
	wm.feedbackReceivedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("step.current", step)),
	)
}

// RecordFeedbackDropped records feedback discarded because the queue was full
func (wm *WorkflowMetrics) RecordFeedbackDropped(ctx context.Context) {
	if wm == nil {
		return
	}
	wm.feedbackDroppedCounter.Add(ctx, 1)
}
