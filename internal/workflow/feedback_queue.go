package workflow

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/metrics"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

const DefaultFeedbackQueueSize = 16

// FeedbackQueue decouples the push transport from the controller. Offer never
// blocks; feedback arriving while the queue is full is dropped.
type FeedbackQueue struct {
	ch      chan models.AnalysisFeedback
	dropped atomic.Int64
	logger  *zap.Logger
	metrics *metrics.WorkflowMetrics
}

func NewFeedbackQueue(size int, logger *zap.Logger, m *metrics.WorkflowMetrics) *FeedbackQueue {
	if size <= 0 {
		size = DefaultFeedbackQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackQueue{
		ch:      make(chan models.AnalysisFeedback, size),
		logger:  logger,
		metrics: m,
	}
}

// Offer enqueues fb and reports whether it was accepted. Safe for concurrent use.
func (q *FeedbackQueue) Offer(fb models.AnalysisFeedback) bool {
	select {
	case q.ch <- fb:
		return true
	default:
		q.dropped.Add(1)
		q.metrics.RecordFeedbackDropped(context.Background())
		q.logger.Warn("feedback queue full, dropping analysis feedback",
			zap.String("user_id", fb.SubjectID),
			zap.Int("capacity", cap(q.ch)),
		)
		return false
	}
}

// C exposes the queue for select loops.
func (q *FeedbackQueue) C() <-chan models.AnalysisFeedback {
	return q.ch
}

func (q *FeedbackQueue) Len() int { return len(q.ch) }

func (q *FeedbackQueue) Dropped() int64 { return q.dropped.Load() }
