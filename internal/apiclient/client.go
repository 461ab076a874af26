package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// ErrUnauthenticated is returned by calls that need a token before Login.
var ErrUnauthenticated = errors.New("api client has no token")

// StatusError is returned when the gateway answers with a non-success status.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client talks to the gateway REST API on behalf of one subject.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the gateway at baseURL (for example
// http://localhost:8080/api).
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Client errors say nothing about gateway health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("gateway-api-client"),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// SetToken replaces the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.login")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid login request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", bytes.NewReader(body), "application/json", &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("login failed: %w", err)
	}

	c.SetToken(resp.Token)
	span.SetAttributes(attribute.String("user.id", resp.User.ID))
	return &resp, nil
}

// AnalyzeResume uploads a resume for analysis and returns the gateway's
// acknowledgment. The analysis itself is delivered over the push channel.
func (c *Client) AnalyzeResume(ctx context.Context, filename string, content []byte, subjectID, token string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.analyze_resume")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", subjectID),
		attribute.Int("resume.size", len(content)),
	)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/resume/upload", token, &body, mw.FormDataContentType(), &resp); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("resume upload failed: %w", err)
	}
	return resp.Message, nil
}

// ListJobs pages through the job catalog.
func (c *Client) ListJobs(ctx context.Context, q models.JobQuery) (*models.JobPage, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.list_jobs")
	defer span.End()

	q = q.Normalize()
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("size", strconv.Itoa(q.Size))

	var page models.JobPage
	if err := c.do(ctx, http.MethodGet, "/jobs?"+params.Encode(), c.Token(), nil, "", &page); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return &page, nil
}

// GetJob fetches one job posting.
func (c *Client) GetJob(ctx context.Context, id string) (*models.JobPosting, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.get_job")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	var job models.JobPosting
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), c.Token(), nil, "", &job); err != nil {
		span.RecordError(err)
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// RecommendedJobs returns the jobs recommended for the current subject.
func (c *Client) RecommendedJobs(ctx context.Context) ([]models.JobPosting, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.recommended_jobs")
	defer span.End()

	var jobs []models.JobPosting
	if err := c.do(ctx, http.MethodGet, "/jobs/recommended", c.Token(), nil, "", &jobs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load recommended jobs: %w", err)
	}
	span.SetAttributes(attribute.Int("jobs.count", len(jobs)))
	return jobs, nil
}

// AppendDocument saves a finished document for the current subject.
func (c *Client) AppendDocument(ctx context.Context, doc models.SavedDocument) (models.SavedDocument, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.append_document")
	defer span.End()

	body, err := json.Marshal(models.AppendDocumentRequest{
		Title:       doc.Title,
		Counterpart: doc.Counterpart,
		Content:     doc.Content,
		Status:      doc.Status,
	})
	if err != nil {
		return models.SavedDocument{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var saved models.SavedDocument
	if err := c.do(ctx, http.MethodPost, "/documents", c.Token(), bytes.NewReader(body), "application/json", &saved); err != nil {
		span.RecordError(err)
		return models.SavedDocument{}, fmt.Errorf("failed to save document: %w", err)
	}
	span.SetAttributes(attribute.String("document.id", saved.ID))
	return saved, nil
}

// ListDocuments returns the current subject's saved documents.
func (c *Client) ListDocuments(ctx context.Context) ([]models.SavedDocument, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.list_documents")
	defer span.End()

	var docs []models.SavedDocument
	if err := c.do(ctx, http.MethodGet, "/documents", c.Token(), nil, "", &docs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// IsHealthy checks the gateway health endpoint. baseURL's /api suffix is
// replaced with /health.
func (c *Client) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "gateway.health_check")
	defer span.End()

	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	healthURL := strings.TrimSuffix(c.baseURL, "/api") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))
	return healthy
}

// do runs one request through the circuit breaker and decodes a JSON
// response into out. An empty token sends no Authorization header; the
// login path is the only caller allowed to do so.
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	if token == "" && path != "/auth/login" {
		return ErrUnauthenticated
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doInternal(ctx, method, path, token, body, contentType, out)
	})
	return err
}

func (c *Client) doInternal(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeStatusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
	}

	var er models.ErrorResponse
	if json.Unmarshal(bodyBytes, &er) == nil && er.Error != "" {
		return &StatusError{StatusCode: resp.StatusCode, Code: er.Code, Message: er.Error}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
}
