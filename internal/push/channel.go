package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

var (
	ErrMissingCredential = errors.New("push channel requires a subject and credential")
	ErrClosed            = errors.New("push channel closed")
	ErrAlreadyConnected  = errors.New("push channel already connected")
)

const (
	handshakeTimeout = 10 * time.Second
	receiptTimeout   = 10 * time.Second
	writeWait        = 10 * time.Second
)

// Handlers receive frames from the read loop goroutine. They must not block
// for long; the workflow client only posts to its feedback queue.
type Handlers struct {
	OnFeedback     func(models.AnalysisFeedback)
	OnNotification func(models.Notification)
	OnError        func(error)
}

// Channel is a client of the gateway push hub scoped to one subject.
type Channel struct {
	url      string
	identity auth.Identity
	handlers Handlers
	logger   *zap.Logger
	tracer   trace.Tracer
	dialer   websocket.Dialer

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewChannel creates a channel for the hub at url (ws:// or wss://).
func NewChannel(url string, identity auth.Identity, handlers Handlers, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		url:      url,
		identity: identity,
		handlers: handlers,
		logger:   logger,
		tracer:   otel.Tracer("push-channel"),
		dialer:   websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		done:     make(chan struct{}),
	}
}

// Connect dials the hub, subscribes to the feedback and notification topics
// and waits for both receipts before delivering frames to the handlers.
func (ch *Channel) Connect(ctx context.Context) error {
	ctx, span := ch.tracer.Start(ctx, "push_channel.connect")
	defer span.End()

	if ch.identity == nil || ch.identity.SubjectID() == "" || ch.identity.Credential() == "" {
		return ErrMissingCredential
	}
	span.SetAttributes(attribute.String("user.id", ch.identity.SubjectID()))

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return ErrClosed
	}
	if ch.ws != nil {
		return ErrAlreadyConnected
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+ch.identity.Credential())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))

	ws, resp, err := ch.dialer.DialContext(ctx, ch.url, headers)
	if err != nil {
		span.RecordError(err)
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("failed to dial push hub (status %d): %s: %w", resp.StatusCode, string(body), err)
		}
		return fmt.Errorf("failed to dial push hub: %w", err)
	}

	early, err := subscribeAll(ws, models.TopicFeedback, models.TopicNotifications)
	if err != nil {
		span.RecordError(err)
		ws.Close()
		return err
	}
	_ = ws.SetReadDeadline(time.Time{})

	ch.ws = ws
	ch.wg.Add(1)
	go ch.readLoop(ws, early)

	ch.logger.Info("push channel connected", zap.String("user_id", ch.identity.SubjectID()))
	return nil
}

// subscribeAll sends one subscribe frame per topic and waits until every
// topic has been acknowledged. Message frames that arrive before the last
// receipt are returned in arrival order.
func subscribeAll(ws *websocket.Conn, topics ...string) ([]models.Frame, error) {
	pending := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(models.Frame{Type: models.FrameSubscribe, Topic: topic}); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		pending[topic] = struct{}{}
	}

	var early []models.Frame
	_ = ws.SetReadDeadline(time.Now().Add(receiptTimeout))
	for len(pending) > 0 {
		var frame models.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			return nil, fmt.Errorf("failed to read subscription receipt: %w", err)
		}
		switch frame.Type {
		case models.FrameSubscribed:
			delete(pending, frame.Topic)
		case models.FrameError:
			return nil, fmt.Errorf("subscription to %s rejected: %s", frame.Topic, frame.Message)
		case models.FrameMessage:
			early = append(early, frame)
		}
	}
	return early, nil
}

// readLoop dispatches frames buffered during the subscribe handshake, then
// reads until the connection ends.
func (ch *Channel) readLoop(ws *websocket.Conn, early []models.Frame) {
	defer ch.wg.Done()

	for _, frame := range early {
		ch.dispatch(frame)
	}
	for {
		var frame models.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if ch.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				ch.logger.Info("push hub closed the channel")
			} else {
				ch.logger.Warn("push channel read failed", zap.Error(err))
			}
			ch.deliverError(fmt.Errorf("push channel lost: %w", err))
			return
		}
		ch.dispatch(frame)
	}
}

func (ch *Channel) dispatch(frame models.Frame) {
	if ch.isClosed() {
		return
	}

	switch {
	case frame.Type == models.FrameError:
		ch.deliverError(fmt.Errorf("push hub error: %s", frame.Message))
	case frame.Type != models.FrameMessage:
		ch.logger.Debug("ignoring push frame", zap.String("type", string(frame.Type)))
	case frame.Topic == models.TopicFeedback:
		var fb models.AnalysisFeedback
		if err := json.Unmarshal(frame.Body, &fb); err != nil {
			ch.logger.Warn("undecodable feedback frame", zap.Error(err))
			return
		}
		if ch.handlers.OnFeedback != nil {
			ch.handlers.OnFeedback(fb)
		}
	case frame.Topic == models.TopicNotifications:
		var n models.Notification
		if err := json.Unmarshal(frame.Body, &n); err != nil {
			ch.logger.Warn("undecodable notification frame", zap.Error(err))
			return
		}
		if ch.handlers.OnNotification != nil {
			ch.handlers.OnNotification(n)
		}
	default:
		ch.logger.Debug("ignoring frame for unknown topic", zap.String("topic", frame.Topic))
	}
}

func (ch *Channel) deliverError(err error) {
	if ch.isClosed() || ch.handlers.OnError == nil {
		return
	}
	ch.handlers.OnError(err)
}

func (ch *Channel) isClosed() bool {
	select {
	case <-ch.done:
		return true
	default:
		return false
	}
}

// Close tears the channel down. No handler is invoked after Close returns.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	close(ch.done)
	ws := ch.ws
	ch.mu.Unlock()

	if ws == nil {
		return nil
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := ws.Close()
	ch.wg.Wait()
	return err
}
