package models

import (
	"encoding/json"
	"fmt"
)

// Push topics. Both are scoped to the authenticated subject by the hub.
const (
	TopicFeedback      = "/user/queue/feedback"
	TopicNotifications = "/user/queue/notifications"
)

// FrameType identifies a push channel frame
type FrameType string

const (
	FrameSubscribe  FrameType = "subscribe"
	FrameSubscribed FrameType = "subscribed"
	FrameMessage    FrameType = "message"
	FrameError      FrameType = "error"
)

// Frame is the JSON envelope exchanged over the push websocket
type Frame struct {
	Type    FrameType       `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewMessageFrame wraps a payload for delivery on topic
func NewMessageFrame(topic string, payload any) (Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return Frame{Type: FrameMessage, Topic: topic, Body: body}, nil
}

// IsKnownTopic reports whether topic can be subscribed to
func IsKnownTopic(topic string) bool {
	return topic == TopicFeedback || topic == TopicNotifications
}

// FeedbackStatus is the delivery state of an analysis result
type FeedbackStatus string

const (
	FeedbackPending   FeedbackStatus = "pending"
	FeedbackDelivered FeedbackStatus = "delivered"
	// FeedbackCompleted is what the analysis service stamps on finished results.
	FeedbackCompleted FeedbackStatus = "completed"
)

// AnalysisFeedback is the out-of-band resume analysis result
type AnalysisFeedback struct {
	SubjectID   string         `json:"userId"`
	Strengths   string         `json:"strengths"`
	Weaknesses  string         `json:"weaknesses"`
	Suggestions string         `json:"suggestions,omitempty"`
	Status      FeedbackStatus `json:"status"`
}

// Notification is a generic transient message for a subject
type Notification struct {
	SubjectID string `json:"userId"`
	Message   string `json:"message"`
}

// AnalysisRequest is published to the broker after a resume upload
type AnalysisRequest struct {
	SubjectID string `json:"userId"`
	FileURL   string `json:"fileUrl"`
}
