package workflow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

func TestFeedbackQueue_DropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	q := NewFeedbackQueue(2, zap.New(core), nil)

	assert.True(t, q.Offer(models.AnalysisFeedback{SubjectID: "u"}))
	assert.True(t, q.Offer(models.AnalysisFeedback{SubjectID: "u"}))
	assert.False(t, q.Offer(models.AnalysisFeedback{SubjectID: "u"}))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(1), q.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("feedback queue full, dropping analysis feedback").Len())
}

func TestFeedbackQueue_ConcurrentOffer(t *testing.T) {
	q := NewFeedbackQueue(0, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Offer(models.AnalysisFeedback{})
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultFeedbackQueueSize, q.Len())
	assert.Equal(t, int64(50-DefaultFeedbackQueueSize), q.Dropped())
}

func TestFeedbackQueue_DrainedByController(t *testing.T) {
	q := NewFeedbackQueue(4, nil, nil)
	ctrl := NewController(Config{Queue: q})

	q.Offer(models.AnalysisFeedback{Strengths: "first"})
	q.Offer(models.AnalysisFeedback{Strengths: "second"})

	assert.Equal(t, 2, ctrl.DrainFeedback())
	assert.Equal(t, "second", ctrl.Feedback().Strengths)
	assert.Same(t, q, ctrl.Queue())
}
