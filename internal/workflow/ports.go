package workflow

import (
	"context"
	"errors"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

var (
	ErrInvalidFileType   = errors.New("only PDF resumes are accepted")
	ErrNoResumeSelected  = errors.New("no resume selected")
	ErrMissingCredential = errors.New("missing credential")
	ErrNotFinalStep      = errors.New("finish is only allowed from the final step")
	ErrNoDraft           = errors.New("no draft has been generated")
	ErrJobNotFound       = errors.New("job not found in recommendations")
)

// NoticeLevel is the severity of a user facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user facing message emitted by controller operations.
type Notice struct {
	Level   NoticeLevel
	Title   string
	Message string
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// ResumeAnalyzer submits a resume to the analysis service and returns its
// acknowledgment. The analysis result arrives later over the push channel.
type ResumeAnalyzer interface {
	AnalyzeResume(ctx context.Context, filename string, content []byte, subjectID, token string) (string, error)
}

// JobCatalog lists job postings recommended for the current subject.
type JobCatalog interface {
	RecommendedJobs(ctx context.Context) ([]models.JobPosting, error)
}

// DocumentStore persists finished documents for the current subject.
type DocumentStore interface {
	AppendDocument(ctx context.Context, doc models.SavedDocument) (models.SavedDocument, error)
	ListDocuments(ctx context.Context) ([]models.SavedDocument, error)
}
