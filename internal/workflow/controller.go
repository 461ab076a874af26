package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/drafting"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/evaluation"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/metrics"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/similarity"
)

var tracer = otel.Tracer("workflow-controller")

const (
	pdfMIME = "application/pdf"

	genericTitle       = "일반 개발자"
	genericCounterpart = "일반 지원"
)

// Config wires a Controller. Identity, Analyzer, Jobs and Documents are
// required; everything else falls back to a default.
type Config struct {
	Identity  auth.Identity
	Analyzer  ResumeAnalyzer
	Jobs      JobCatalog
	Documents DocumentStore

	Notifier   Notifier
	Queue      *FeedbackQueue
	Generator  *drafting.Generator
	Refiner    *drafting.Refiner
	Evaluator  *evaluation.Scorer
	Similarity *similarity.Scorer
	Metrics    *metrics.WorkflowMetrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Controller drives the five step workflow. It is owned by a single goroutine
// and is not safe for concurrent use; only its FeedbackQueue may be written
// from other goroutines.
type Controller struct {
	identity  auth.Identity
	analyzer  ResumeAnalyzer
	jobs      JobCatalog
	documents DocumentStore

	notifier   Notifier
	queue      *FeedbackQueue
	generator  *drafting.Generator
	refiner    *drafting.Refiner
	evaluator  *evaluation.Scorer
	similarity *similarity.Scorer
	metrics    *metrics.WorkflowMetrics
	logger     *zap.Logger
	now        func() time.Time

	view            View
	session         *Session
	lastFinished    State
	feedback        *models.AnalysisFeedback
	recommendations []models.JobPosting
	saved           []models.SavedDocument
}

func NewController(cfg Config) *Controller {
	c := &Controller{
		identity:   cfg.Identity,
		analyzer:   cfg.Analyzer,
		jobs:       cfg.Jobs,
		documents:  cfg.Documents,
		notifier:   cfg.Notifier,
		queue:      cfg.Queue,
		generator:  cfg.Generator,
		refiner:    cfg.Refiner,
		evaluator:  cfg.Evaluator,
		similarity: cfg.Similarity,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Clock,
		view:       ViewDashboard,
	}
	if c.identity == nil {
		c.identity = auth.StaticIdentity{}
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(Notice) {})
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.queue == nil {
		c.queue = NewFeedbackQueue(DefaultFeedbackQueueSize, c.logger, c.metrics)
	}
	if c.generator == nil {
		c.generator = drafting.NewGenerator(drafting.DefaultTemplate())
	}
	if c.refiner == nil {
		c.refiner = drafting.NewRefiner(drafting.DefaultKeywords())
	}
	if c.evaluator == nil {
		c.evaluator = evaluation.NewScorer(evaluation.DefaultRubric())
	}
	if c.similarity == nil {
		c.similarity = similarity.NewScorer(similarity.Options{})
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.session = newSession(c.now())
	c.lastFinished = NewState()
	return c
}

// Queue returns the queue the push transport should post feedback to.
func (c *Controller) Queue() *FeedbackQueue { return c.queue }

func (c *Controller) View() View { return c.view }

func (c *Controller) Session() *Session { return c.session }

func (c *Controller) Step() Step { return c.session.State.Current() }

func (c *Controller) State() State { return c.session.State }

func (c *Controller) JobSkipped() bool { return c.session.jobSkipped }

func (c *Controller) Draft() drafting.Document { return c.session.draft }

func (c *Controller) FinalText() string { return c.session.final }

func (c *Controller) Recommendations() []models.JobPosting { return c.recommendations }

// LastFinishedState is the state of the most recently finished session, with
// the final step marked complete.
func (c *Controller) LastFinishedState() State { return c.lastFinished }

// SelectedJob returns a copy of the bound job, or nil.
func (c *Controller) SelectedJob() *models.JobPosting {
	if c.session.job == nil {
		return nil
	}
	job := *c.session.job
	return &job
}

// Feedback returns the cached analysis feedback, or nil.
func (c *Controller) Feedback() *models.AnalysisFeedback {
	if c.feedback == nil {
		return nil
	}
	fb := *c.feedback
	return &fb
}

// SelectedResume returns the resume awaiting analysis, or nil.
func (c *Controller) SelectedResume() *ResumeFile {
	return c.session.resume
}

// ChatLog returns a copy of the session's chat log.
func (c *Controller) ChatLog() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.session.chat))
	copy(out, c.session.chat)
	return out
}

// Progress reports completion of the current session as a percentage.
func (c *Controller) Progress() float64 {
	return c.session.State.Progress()
}

// StartNewSession discards the current session and opens the workflow view
// on a fresh one. Cached feedback is kept.
func (c *Controller) StartNewSession() {
	c.session = newSession(c.now())
	c.view = ViewWorkflow
	c.metrics.RecordSessionStarted(context.Background(), c.session.ID)
	c.logger.Info("workflow session started", zap.String("session_id", c.session.ID))
}

// Advance moves to the next step and marks the current one complete. It is a
// no-op at the final step.
func (c *Controller) Advance() bool {
	from := c.session.State.Current()
	if !c.session.State.advance() {
		return false
	}
	to := c.session.State.Current()
	c.metrics.RecordStepTransition(context.Background(), int(from), int(to))
	c.enter(to)
	return true
}

// Retreat moves to the previous step. It is a no-op at the first step.
func (c *Controller) Retreat() bool {
	from := c.session.State.Current()
	if !c.session.State.retreat() {
		return false
	}
	c.metrics.RecordStepTransition(context.Background(), int(from), int(c.session.State.Current()))
	return true
}

func (c *Controller) enter(step Step) {
	switch step {
	case StepAIConsult:
		if c.session.draftGenerated {
			return
		}
		c.session.draft = c.generator.Generate(drafting.Input{
			Job:      c.session.job,
			Feedback: c.feedback,
		})
		c.session.draftGenerated = true
		c.notify(NoticeSuccess, "맞춤형 자기소개서 생성 완료", "이력서와 선택한 직무를 바탕으로 자기소개서를 생성했습니다.")
	case StepFinalEdit:
		if c.session.final == "" && c.session.draftGenerated {
			c.session.final = c.session.draft.Render()
		}
	}
}

// SelectJob binds job to the session and clears any skip.
func (c *Controller) SelectJob(job models.JobPosting) {
	c.session.bindJob(job)
}

// SelectJobByID binds one of the loaded recommendations.
func (c *Controller) SelectJobByID(id string) error {
	for _, job := range c.recommendations {
		if job.ID == id {
			c.session.bindJob(job)
			return nil
		}
	}
	c.notify(NoticeError, "직무 선택 오류", fmt.Sprintf("추천 목록에 없는 직무입니다: %s", id))
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// SkipJobSelection proceeds without a job and marks job selection complete.
func (c *Controller) SkipJobSelection() {
	c.session.skipJob()
}

// ApplyFeedback caches fb for draft generation and marks resume analysis
// complete. It is valid in any step.
func (c *Controller) ApplyFeedback(fb models.AnalysisFeedback) {
	fb.Status = models.FeedbackDelivered
	c.feedback = &fb
	c.session.State.complete(StepResumeAnalysis)
	c.metrics.RecordFeedbackReceived(context.Background(), int(c.session.State.Current()))
	c.logger.Info("analysis feedback applied",
		zap.String("session_id", c.session.ID),
		zap.Stringer("step", c.session.State.Current()),
	)
	c.notify(NoticeSuccess, "이력서 분석 완료!", "AI 분석 결과를 확인하고 다음 단계로 진행하세요.")
}

// DrainFeedback applies all queued feedback without blocking and returns how
// many were applied.
func (c *Controller) DrainFeedback() int {
	n := 0
	for {
		select {
		case fb := <-c.queue.C():
			c.ApplyFeedback(fb)
			n++
		default:
			return n
		}
	}
}

// SelectResume stages a resume for analysis. Anything other than a PDF is
// rejected and the previous selection is kept. Cached feedback stays until
// the analysis of the new resume replaces it.
func (c *Controller) SelectResume(name string, content []byte) error {
	if !mimetype.Detect(content).Is(pdfMIME) {
		c.notify(NoticeError, "파일 형식 오류", "PDF 파일만 업로드할 수 있습니다.")
		return ErrInvalidFileType
	}
	c.session.resume = &ResumeFile{Name: name, Content: content}
	return nil
}

// AnalyzeResume uploads the selected resume. The selection is cleared only
// when the service acknowledges it.
func (c *Controller) AnalyzeResume(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "workflow.analyze_resume")
	defer span.End()

	resume := c.session.resume
	if resume == nil {
		c.notify(NoticeError, "분석할 이력서 파일을 선택해주세요.", "")
		return "", ErrNoResumeSelected
	}
	token := c.identity.Credential()
	if token == "" {
		c.notify(NoticeError, "로그인이 필요합니다.", "")
		return "", ErrMissingCredential
	}

	span.SetAttributes(
		attribute.String("resume.name", resume.Name),
		attribute.Int("resume.size", len(resume.Content)),
	)
	c.notify(NoticeInfo, "분석 요청 시작", "이력서를 분석 중입니다. 잠시만 기다려주세요!")

	ack, err := c.analyzer.AnalyzeResume(ctx, resume.Name, resume.Content, c.identity.SubjectID(), token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis request failed")
		c.logger.Error("resume analysis request failed", zap.Error(err), zap.String("resume", resume.Name))
		c.notify(NoticeError, "요청 실패", "이력서 분석 요청 중 오류가 발생했습니다.")
		return "", fmt.Errorf("failed to request resume analysis: %w", err)
	}

	if ack == "" {
		ack = "분석이 시작되었습니다. 결과는 실시간으로 전달됩니다."
	}
	c.session.resume = nil
	c.notify(NoticeSuccess, "분석 요청 완료", ack)
	return ack, nil
}

// LoadRecommendations fetches recommended jobs for selection.
func (c *Controller) LoadRecommendations(ctx context.Context) ([]models.JobPosting, error) {
	ctx, span := tracer.Start(ctx, "workflow.load_recommendations")
	defer span.End()

	jobs, err := c.jobs.RecommendedJobs(ctx)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("failed to load job recommendations", zap.Error(err))
		c.notify(NoticeError, "추천 공고 오류", "추천 채용공고를 불러오지 못했습니다.")
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	span.SetAttributes(attribute.Int("jobs.count", len(jobs)))
	c.recommendations = jobs
	return jobs, nil
}

// SendMessage runs one chat refinement turn against the draft and returns the
// assistant reply. Blank input is ignored.
func (c *Controller) SendMessage(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if !c.session.draftGenerated {
		return "", ErrNoDraft
	}

	c.session.chat = append(c.session.chat, models.ChatMessage{Role: models.RoleUser, Content: text})
	draft, reply, changed := c.refiner.Refine(c.session.draft, text, c.session.job)
	if changed {
		c.session.draft = draft
	}
	c.session.chat = append(c.session.chat, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
	return reply, nil
}

// EditFinal replaces the final buffer.
func (c *Controller) EditFinal(text string) error {
	if c.session.State.Current() != StepFinalEdit {
		return ErrNotFinalStep
	}
	c.session.final = text
	return nil
}

// Evaluate scores the final buffer against the bound job.
func (c *Controller) Evaluate() evaluation.Result {
	var tags []string
	if c.session.job != nil {
		tags = c.session.job.Tags
	}
	return c.evaluator.Evaluate(c.session.final, tags, c.session.job != nil)
}

// Duplicates reports repeated sentences in the final buffer.
func (c *Controller) Duplicates() similarity.Report {
	return c.similarity.Analyze(c.session.final)
}

func (c *Controller) CharacterCount() evaluation.CharacterCount {
	return evaluation.Count(c.session.final)
}

// Finish saves finalText as a completed document and returns to the
// dashboard with a fresh session. On failure the session is left intact.
func (c *Controller) Finish(ctx context.Context, finalText string) (models.SavedDocument, error) {
	ctx, span := tracer.Start(ctx, "workflow.finish")
	defer span.End()

	if c.session.State.Current() != StepFinalEdit {
		return models.SavedDocument{}, ErrNotFinalStep
	}

	doc := models.SavedDocument{
		SubjectID:   c.identity.SubjectID(),
		Title:       genericTitle,
		Counterpart: genericCounterpart,
		Content:     finalText,
		CreatedAt:   c.now(),
		Status:      models.DocumentCompleted,
	}
	if job := c.session.job; job != nil {
		doc.Title = job.Title
		doc.Counterpart = job.Company
	}

	saved, err := c.documents.AppendDocument(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		c.logger.Error("failed to save document", zap.Error(err), zap.String("session_id", c.session.ID))
		c.notify(NoticeError, "저장 실패", "자기소개서를 저장하지 못했습니다. 다시 시도해주세요.")
		return models.SavedDocument{}, fmt.Errorf("failed to save document: %w", err)
	}

	finished := c.session
	finished.State.complete(StepFinalEdit)
	c.lastFinished = finished.State
	c.saved = append(c.saved, saved)
	c.metrics.RecordSessionFinished(ctx, finished.ID, finished.jobSkipped, c.now().Sub(finished.StartedAt))
	span.SetAttributes(
		attribute.String("session.id", finished.ID),
		attribute.String("document.id", saved.ID),
	)

	c.session = newSession(c.now())
	c.view = ViewDashboard
	c.logger.Info("workflow session finished",
		zap.String("session_id", finished.ID),
		zap.String("document_id", saved.ID),
	)
	c.notify(NoticeSuccess, "자기소개서 작성 완료!", "대시보드에서 작성한 자기소개서를 확인할 수 있습니다.")
	return saved, nil
}

// SavedDocuments refreshes the dashboard list from the document store.
func (c *Controller) SavedDocuments(ctx context.Context) ([]models.SavedDocument, error) {
	ctx, span := tracer.Start(ctx, "workflow.saved_documents")
	defer span.End()

	docs, err := c.documents.ListDocuments(ctx)
	if err != nil {
		span.RecordError(err)
		c.notify(NoticeError, "목록 오류", "저장된 자기소개서를 불러오지 못했습니다.")
		return c.saved, fmt.Errorf("failed to list documents: %w", err)
	}
	c.saved = docs
	return docs, nil
}

func (c *Controller) notify(level NoticeLevel, title, message string) {
	c.notifier.Notify(Notice{Level: level, Title: title, Message: message})
}
