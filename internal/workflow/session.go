package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/drafting"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// greeting seeds every session's chat log.
const greeting = "지원자님의 이력서에 맞는 자기소개서에요! \r\n원하시는 직무나 기업이 없었다면, 저에게 말씀해주세요! 😊\n\n 자기소개서 작성에 수정이 필요하시면 언제든지 말씀해주세요! ✨"

// ResumeFile is a resume chosen for analysis but not yet uploaded.
type ResumeFile struct {
	Name    string
	Content []byte
}

// Session holds everything that lives for one pass through the workflow.
// It is owned by a Controller and never shared.
type Session struct {
	ID        string
	StartedAt time.Time
	State     State

	job        *models.JobPosting
	jobSkipped bool
	resume     *ResumeFile

	draft          drafting.Document
	draftGenerated bool
	final          string
	chat           []models.ChatMessage
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: now,
		State:     NewState(),
		chat: []models.ChatMessage{
			{Role: models.RoleAssistant, Content: greeting},
		},
	}
}

func (s *Session) bindJob(job models.JobPosting) {
	s.job = &job
	s.jobSkipped = false
}

func (s *Session) skipJob() {
	s.job = nil
	s.jobSkipped = true
	s.State.complete(StepJobSelection)
}
