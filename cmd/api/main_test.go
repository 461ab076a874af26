package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/apiclient"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/broker"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/gateway"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/metrics"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/push"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/workflow"
)

var resumePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type memoryUsers struct {
	users map[string]*models.User
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type memoryJobs struct {
	jobs []models.JobPosting
}

func (m *memoryJobs) ListJobs(_ context.Context, _ models.JobQuery) ([]models.JobPosting, int, error) {
	return m.jobs, len(m.jobs), nil
}

func (m *memoryJobs) GetJob(_ context.Context, id string) (*models.JobPosting, error) {
	for _, j := range m.jobs {
		if j.ID == id {
			job := j
			return &job, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryJobs) RecommendedJobs(_ context.Context, limit int) ([]models.JobPosting, error) {
	return m.jobs[:min(limit, len(m.jobs))], nil
}

type memoryDocuments struct {
	mu   sync.Mutex
	docs []models.SavedDocument
}

func (m *memoryDocuments) AppendDocument(_ context.Context, doc models.SavedDocument) (models.SavedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = uuid.NewString()
	m.docs = append(m.docs, doc)
	return doc, nil
}

func (m *memoryDocuments) ListDocuments(_ context.Context, subjectID string) ([]models.SavedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SavedDocument
	for _, d := range m.docs {
		if d.SubjectID == subjectID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memoryResumes struct{}

func (memoryResumes) PutResume(_ context.Context, subjectID, filename string, body io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return fmt.Sprintf("http://storage.test/resumes/%s/%s", subjectID, filename), nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testGateway struct {
	server   *httptest.Server
	producer *mocks.SyncProducer
	relay    *broker.Relay
	user     *models.User
}

func newTestGateway(t *testing.T, db pinger) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	jwtManager, err := auth.NewJWTManager("integration-secret-0123")
	require.NoError(t, err)
	pushMetrics, err := metrics.NewPushMetrics()
	require.NoError(t, err)
	hub := gateway.NewPushHub(jwtManager, logger, pushMetrics, 8)
	relay := broker.NewRelay(hub, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: uuid.NewString(), Name: "지원자", Email: "applicant@example.com", HashedPassword: string(hash)}

	mp := mocks.NewSyncProducer(t, broker.NewSaramaConfig("test"))
	handler := gateway.NewHandler(gateway.HandlerConfig{
		Users: &memoryUsers{users: map[string]*models.User{user.Email: user}},
		Jobs: &memoryJobs{jobs: []models.JobPosting{
			{ID: "1", Title: "백엔드 개발자", Company: "네이버", Tags: []string{"Go", "Kafka"}, MatchScore: 95},
			{ID: "2", Title: "서버 개발자", Company: "카카오", Tags: []string{"Java"}, MatchScore: 88},
		}},
		Documents:     &memoryDocuments{},
		Resumes:       memoryResumes{},
		Publisher:     broker.NewProducer(mp, "", logger),
		JWTManager:    jwtManager,
		Logger:        logger,
		TokenTTL:      time.Hour,
		MaxResumeSize: 1 << 20,
	})

	srv := httptest.NewServer(newRouter(handler, hub, jwtManager, db, logger))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		_ = mp.Close()
	})

	return &testGateway{server: srv, producer: mp, relay: relay, user: user}
}

// expectAnalysis answers the next published analysis request through the
// relay, the way the analysis service replies on the feedback topic.
func (gw *testGateway) expectAnalysis() {
	gw.producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var req models.AnalysisRequest
		if err := json.Unmarshal(value, &req); err != nil {
			return err
		}
		if !strings.HasSuffix(req.FileURL, "/cv.pdf") {
			return fmt.Errorf("unexpected file url %q", req.FileURL)
		}
		fb, err := json.Marshal(models.AnalysisFeedback{
			SubjectID:  req.SubjectID,
			Strengths:  "대규모 트래픽 서비스 운영 경험",
			Weaknesses: "리더십 경험 부족",
		})
		if err != nil {
			return err
		}
		return gw.relay.HandleMessage(context.Background(), &sarama.ConsumerMessage{
			Topic: broker.TopicAnalysisFeedback,
			Value: fb,
		})
	})
}

func TestEndToEndSession(t *testing.T) {
	gw := newTestGateway(t, stubPinger{})
	gw.expectAnalysis()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := apiclient.NewClient(gw.server.URL+"/api", 5*time.Second, zap.NewNop())
	login, err := client.Login(ctx, models.LoginRequest{Email: gw.user.Email, Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, gw.user.ID, login.User.ID)

	identity := auth.StaticIdentity{Subject: login.User.ID, Token: login.Token}
	queue := workflow.NewFeedbackQueue(4, zap.NewNop(), nil)
	channel := push.NewChannel("ws"+strings.TrimPrefix(gw.server.URL, "http")+"/api/ws", identity, push.Handlers{
		OnFeedback: func(fb models.AnalysisFeedback) { queue.Offer(fb) },
	}, zap.NewNop())
	require.NoError(t, channel.Connect(ctx))
	defer func() { _ = channel.Close() }()

	ctrl := workflow.NewController(workflow.Config{
		Identity:  identity,
		Analyzer:  client,
		Jobs:      client,
		Documents: client,
		Queue:     queue,
	})

	ctrl.StartNewSession()
	require.NoError(t, ctrl.SelectResume("cv.pdf", resumePDF))
	ack, err := ctrl.AnalyzeResume(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ack)

	select {
	case fb := <-queue.C():
		assert.Equal(t, login.User.ID, fb.SubjectID)
		ctrl.ApplyFeedback(fb)
	case <-ctx.Done():
		t.Fatal("analysis feedback was not pushed")
	}
	assert.True(t, ctrl.State().Completed(workflow.StepResumeAnalysis))

	require.True(t, ctrl.Advance())
	jobs, err := ctrl.LoadRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "1", jobs[0].ID)

	require.NoError(t, ctrl.SelectJobByID("1"))
	require.True(t, ctrl.Advance())
	require.True(t, ctrl.Advance())
	assert.Contains(t, ctrl.Draft().Render(), "네이버")
	require.True(t, ctrl.Advance())
	require.Equal(t, workflow.StepFinalEdit, ctrl.Step())

	saved, err := ctrl.Finish(ctx, ctrl.FinalText())
	require.NoError(t, err)
	assert.Equal(t, "백엔드 개발자", saved.Title)
	assert.Equal(t, models.DocumentCompleted, saved.Status)
	assert.Equal(t, workflow.ViewDashboard, ctrl.View())
	assert.Equal(t, float64(100), ctrl.LastFinishedState().Progress())

	docs, err := ctrl.SavedDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, login.User.ID, docs[0].SubjectID)
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	tests := []struct {
		name string
		db   pinger
		path string
		want int
	}{
		{"health", stubPinger{}, "/health", http.StatusOK},
		{"api health", stubPinger{}, "/api/health", http.StatusOK},
		{"ready", stubPinger{}, "/ready", http.StatusOK},
		{"not ready", stubPinger{err: errors.New("connection refused")}, "/ready", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, tt.db)

			resp, err := http.Get(gw.server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	gw := newTestGateway(t, stubPinger{})

	for _, path := range []string{"/api/jobs", "/api/jobs/recommended", "/api/documents"} {
		resp, err := http.Get(gw.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}
