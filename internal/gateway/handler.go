package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

const (
	// AnalysisAck is returned once a resume has been queued for analysis.
	AnalysisAck = "이력서 분석 요청이 접수되었습니다. 완료 시 알림이 전송됩니다."

	DefaultTokenTTL      = 24 * time.Hour
	DefaultMaxResumeSize = 10 << 20
	recommendedJobsLimit = 10
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	users      UserStore
	jobs       JobStore
	documents  DocumentStore
	resumes    ResumeStore
	publisher  AnalysisPublisher
	jwtManager *auth.JWTManager
	logger     *zap.Logger

	tokenTTL      time.Duration
	maxResumeSize int64
}

// HandlerConfig lists the collaborators of a Handler
type HandlerConfig struct {
	Users         UserStore
	Jobs          JobStore
	Documents     DocumentStore
	Resumes       ResumeStore
	Publisher     AnalysisPublisher
	JWTManager    *auth.JWTManager
	Logger        *zap.Logger
	TokenTTL      time.Duration
	MaxResumeSize int64
}

// NewHandler creates a new gateway handler
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		users:         cfg.Users,
		jobs:          cfg.Jobs,
		documents:     cfg.Documents,
		resumes:       cfg.Resumes,
		publisher:     cfg.Publisher,
		jwtManager:    cfg.JWTManager,
		logger:        cfg.Logger,
		tokenTTL:      cfg.TokenTTL,
		maxResumeSize: cfg.MaxResumeSize,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = DefaultTokenTTL
	}
	if h.maxResumeSize <= 0 {
		h.maxResumeSize = DefaultMaxResumeSize
	}
	return h
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidRequest, "Invalid request"))
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("user lookup failed", zap.Error(err))
		}
		h.logger.Warn("login rejected", zap.String("email", req.Email))
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Invalid email or password"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		h.logger.Warn("invalid password", zap.String("email", req.Email))
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Invalid email or password"))
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(c.Request.Context(), user.ID, user.Email, user.Name, []string{"user"}, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrCodeInternalError, "Failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToUserInfo(),
	})
}

// RefreshToken godoc
// @Summary Refresh token
// @Description Exchange a valid token for one with a new expiry
// @Tags auth
// @Produce json
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	v, _ := c.Get(auth.ClaimsKey)
	claims, ok := v.(*auth.Claims)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "User not authenticated"))
		return
	}

	token, expiresAt, err := h.jwtManager.RefreshToken(c.Request.Context(), auth.ExtractToken(c.Request), h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Invalid or expired token"))
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      models.UserInfo{ID: claims.UserID, Name: claims.Name, Email: claims.Email},
	})
}

// UploadResume godoc
// @Summary Request resume analysis
// @Description Store a PDF resume and queue it for analysis. The result is pushed on /user/queue/feedback.
// @Tags resume
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF resume"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /resume/upload [post]
func (h *Handler) UploadResume(c *gin.Context) {
	subjectID, ok := auth.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "User not authenticated"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidRequest, "Missing file"))
		return
	}
	if header.Size > h.maxResumeSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.NewErrorResponse(models.ErrCodeInvalidRequest, "File too large"))
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidRequest, "Unreadable file"))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxResumeSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidRequest, "Unreadable file"))
		return
	}
	if mtype := mimetype.Detect(content); !mtype.Is("application/pdf") {
		h.logger.Warn("rejected resume upload", zap.String("user_id", subjectID), zap.String("mime", mtype.String()))
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidFileType, "PDF 파일만 업로드할 수 있습니다."))
		return
	}

	ctx := c.Request.Context()
	url, err := h.resumes.PutResume(ctx, subjectID, header.Filename, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		h.logger.Error("failed to store resume", zap.Error(err), zap.String("user_id", subjectID))
		c.JSON(http.StatusBadGateway, models.NewErrorResponse(models.ErrCodeUpstreamFailed, "Failed to store resume"))
		return
	}

	if err := h.publisher.PublishAnalysisRequest(ctx, models.AnalysisRequest{SubjectID: subjectID, FileURL: url}); err != nil {
		h.logger.Error("failed to publish analysis request", zap.Error(err), zap.String("user_id", subjectID))
		c.JSON(http.StatusBadGateway, models.NewErrorResponse(models.ErrCodeUpstreamFailed, "Failed to queue analysis"))
		return
	}

	h.logger.Info("resume queued for analysis", zap.String("user_id", subjectID), zap.String("file_url", url))
	c.JSON(http.StatusOK, models.MessageResponse{Message: AnalysisAck})
}

// ListJobs godoc
// @Summary List jobs
// @Description Page through the job catalog, optionally filtered by a search term
// @Tags jobs
// @Produce json
// @Param search query string false "Matches title, company or description"
// @Param page query int false "Zero based page"
// @Param size query int false "Page size"
// @Success 200 {object} models.JobPage
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	var q models.JobQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidRequest, "Invalid query"))
		return
	}
	q = q.Normalize()

	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrCodeInternalError, "Failed to list jobs"))
		return
	}

	c.JSON(http.StatusOK, models.NewJobPage(jobs, total, q))
}

// GetJob godoc
// @Summary Get job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.JobPosting
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.NewErrorResponse(models.ErrCodeNotFound, "Job not found"))
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrCodeInternalError, "Failed to get job"))
		return
	}

	c.JSON(http.StatusOK, job)
}

// RecommendedJobs godoc
// @Summary Recommended jobs
// @Description Jobs ordered by match score
// @Tags jobs
// @Produce json
// @Success 200 {array} models.JobPosting
// @Security BearerAuth
// @Router /jobs/recommended [get]
func (h *Handler) RecommendedJobs(c *gin.Context) {
	jobs, err := h.jobs.RecommendedJobs(c.Request.Context(), recommendedJobsLimit)
	if err != nil {
		h.logger.Error("failed to load recommended jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrCodeInternalError, "Failed to load recommended jobs"))
		return
	}
	if jobs == nil {
		jobs = []models.JobPosting{}
	}

	c.JSON(http.StatusOK, jobs)
}

// AppendDocument godoc
// @Summary Save document
// @Description Append a finished cover letter to the caller's dashboard list
// @Tags documents
// @Accept json
// @Produce json
// @Param request body models.AppendDocumentRequest true "Document"
// @Success 201 {object} models.SavedDocument
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /documents [post]
func (h *Handler) AppendDocument(c *gin.Context) {
	subjectID, ok := auth.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "User not authenticated"))
		return
	}

	var req models.AppendDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Code:    models.ErrCodeValidationFailed,
			Details: map[string]string{"body": err.Error()},
		})
		return
	}

	saved, err := h.documents.AppendDocument(c.Request.Context(), models.SavedDocument{
		SubjectID:   subjectID,
		Title:       req.Title,
		Counterpart: req.Counterpart,
		Content:     req.Content,
		Status:      req.Status,
	})
	if err != nil {
		h.logger.Error("failed to append document", zap.Error(err), zap.String("user_id", subjectID))
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrCodeInternalError, "Failed to save document"))
		return
	}

	c.JSON(http.StatusCreated, saved)
}

// ListDocuments godoc
// @Summary List documents
// @Description Saved cover letters of the caller, oldest first
// @Tags documents
// @Produce json
// @Success 200 {array} models.SavedDocument
// @Security BearerAuth
// @Router /documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	subjectID, ok := auth.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "User not authenticated"))
		return
	}

	docs, err := h.documents.ListDocuments(c.Request.Context(), subjectID)
	if err != nil {
		h.logger.Error("failed to list documents", zap.Error(err), zap.String("user_id", subjectID))
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrCodeInternalError, "Failed to list documents"))
		return
	}
	if docs == nil {
		docs = []models.SavedDocument{}
	}

	c.JSON(http.StatusOK, docs)
}
