package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/metrics"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxFrameSize      = 64 * 1024
	DefaultSendBuffer = 32
)

// PushHub delivers per-subject frames to subscribed websocket connections.
type PushHub struct {
	jwtManager *auth.JWTManager
	logger     *zap.Logger
	metrics    *metrics.PushMetrics
	tracer     trace.Tracer
	upgrader   websocket.Upgrader
	sendBuffer int

	mu    sync.RWMutex
	conns map[string]map[*pushConn]struct{}
}

// NewPushHub creates a hub. sendBuffer bounds the frames queued per connection;
// a connection whose buffer is full is disconnected.
func NewPushHub(jwtManager *auth.JWTManager, logger *zap.Logger, m *metrics.PushMetrics, sendBuffer int) *PushHub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushHub{
		jwtManager: jwtManager,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("push-hub"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the dashboard host is configurable
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
		sendBuffer: sendBuffer,
		conns:      make(map[string]map[*pushConn]struct{}),
	}
}

type pushConn struct {
	subjectID string
	ws        *websocket.Conn
	send      chan models.Frame
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	topics map[string]struct{}
}

func (pc *pushConn) subscribed(topic string) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	_, ok := pc.topics[topic]
	return ok
}

func (pc *pushConn) subscribe(topic string) {
	pc.mu.Lock()
	pc.topics[topic] = struct{}{}
	pc.mu.Unlock()
}

// enqueue never blocks; false means the frame was not queued.
func (pc *pushConn) enqueue(frame models.Frame) bool {
	select {
	case <-pc.done:
		return false
	default:
	}
	select {
	case pc.send <- frame:
		return true
	default:
		return false
	}
}

func (pc *pushConn) close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
		pc.ws.Close()
	})
}

// Serve handles GET /api/ws
// @Summary Push channel
// @Description Websocket carrying analysis feedback and notifications for the authenticated user.
// @Description Send {"type":"subscribe","topic":"/user/queue/feedback"} to subscribe; each subscription is acknowledged with a "subscribed" frame.
// @Tags push
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws [get]
func (h *PushHub) Serve(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "push_hub.serve")

	token := auth.ExtractToken(c.Request)
	if token == "" {
		span.End()
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Missing token"))
		return
	}
	claims, err := h.jwtManager.ValidateToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.End()
		h.logger.Warn("push connection rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Invalid or expired token"))
		return
	}
	span.SetAttributes(attribute.String("user.id", claims.UserID))

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		h.logger.Error("failed to upgrade push connection", zap.Error(err))
		return
	}
	span.End()

	pc := &pushConn{
		subjectID: claims.UserID,
		ws:        ws,
		send:      make(chan models.Frame, h.sendBuffer),
		done:      make(chan struct{}),
		topics:    make(map[string]struct{}),
	}
	h.register(pc)
	defer h.unregister(pc)

	go h.writeLoop(pc)
	h.readLoop(pc)
}

func (h *PushHub) register(pc *pushConn) {
	h.mu.Lock()
	set, ok := h.conns[pc.subjectID]
	if !ok {
		set = make(map[*pushConn]struct{})
		h.conns[pc.subjectID] = set
	}
	set[pc] = struct{}{}
	h.mu.Unlock()

	h.metrics.RecordConnectionOpened(context.Background())
	h.logger.Info("push connection opened", zap.String("user_id", pc.subjectID))
}

func (h *PushHub) unregister(pc *pushConn) {
	h.mu.Lock()
	if set, ok := h.conns[pc.subjectID]; ok {
		if _, present := set[pc]; present {
			delete(set, pc)
			if len(set) == 0 {
				delete(h.conns, pc.subjectID)
			}
			h.metrics.RecordConnectionClosed(context.Background())
		}
	}
	h.mu.Unlock()

	pc.close()
	h.logger.Info("push connection closed", zap.String("user_id", pc.subjectID))
}

// readLoop handles subscribe frames until the connection fails.
func (h *PushHub) readLoop(pc *pushConn) {
	pc.ws.SetReadLimit(maxFrameSize)
	_ = pc.ws.SetReadDeadline(time.Now().Add(pongWait))
	pc.ws.SetPongHandler(func(string) error {
		return pc.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.Frame
		if err := pc.ws.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("push connection read ended", zap.String("user_id", pc.subjectID), zap.Error(err))
			}
			return
		}

		switch {
		case frame.Type != models.FrameSubscribe:
			pc.enqueue(models.Frame{Type: models.FrameError, Message: fmt.Sprintf("unsupported frame type %q", frame.Type)})
		case !models.IsKnownTopic(frame.Topic):
			pc.enqueue(models.Frame{Type: models.FrameError, Topic: frame.Topic, Message: "unknown topic"})
		default:
			pc.subscribe(frame.Topic)
			pc.enqueue(models.Frame{Type: models.FrameSubscribed, Topic: frame.Topic})
		}
	}
}

func (h *PushHub) writeLoop(pc *pushConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-pc.done:
			return
		case frame := <-pc.send:
			_ = pc.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := pc.ws.WriteJSON(frame); err != nil {
				h.logger.Warn("push write failed", zap.String("user_id", pc.subjectID), zap.Error(err))
				pc.close()
				return
			}
		case <-ticker.C:
			_ = pc.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := pc.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				pc.close()
				return
			}
		}
	}
}

// Publish queues payload on topic for every connection of subjectID that
// subscribed to it and returns how many connections it was queued for.
func (h *PushHub) Publish(ctx context.Context, subjectID, topic string, payload any) (int, error) {
	ctx, span := h.tracer.Start(ctx, "push_hub.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", subjectID),
		attribute.String("push.topic", topic),
	)

	if !models.IsKnownTopic(topic) {
		return 0, fmt.Errorf("unknown topic %q", topic)
	}
	frame, err := models.NewMessageFrame(topic, payload)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	h.mu.RLock()
	targets := make([]*pushConn, 0, len(h.conns[subjectID]))
	for pc := range h.conns[subjectID] {
		if pc.subscribed(topic) {
			targets = append(targets, pc)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, pc := range targets {
		if pc.enqueue(frame) {
			delivered++
			h.metrics.RecordDelivery(ctx, topic)
			continue
		}
		h.metrics.RecordDeliveryFailed(ctx, topic, "buffer_full")
		h.logger.Warn("slow push consumer disconnected",
			zap.String("user_id", subjectID),
			zap.String("topic", topic),
		)
		pc.close()
	}

	span.SetAttributes(attribute.Int("push.delivered", delivered))
	return delivered, nil
}

// Connections returns the number of open connections for subjectID.
func (h *PushHub) Connections(subjectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[subjectID])
}

// Close disconnects every connection.
func (h *PushHub) Close() {
	h.mu.RLock()
	all := make([]*pushConn, 0)
	for _, set := range h.conns {
		for pc := range set {
			all = append(all, pc)
		}
	}
	h.mu.RUnlock()

	for _, pc := range all {
		pc.close()
	}
}
