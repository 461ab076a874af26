package gateway

import (
	"context"
	"io"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// UserStore looks up login accounts
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// JobStore serves the job catalog
type JobStore interface {
	ListJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, int, error)
	GetJob(ctx context.Context, id string) (*models.JobPosting, error)
	RecommendedJobs(ctx context.Context, limit int) ([]models.JobPosting, error)
}

// DocumentStore persists saved documents per subject
type DocumentStore interface {
	AppendDocument(ctx context.Context, doc models.SavedDocument) (models.SavedDocument, error)
	ListDocuments(ctx context.Context, subjectID string) ([]models.SavedDocument, error)
}

// ResumeStore keeps uploaded resume files and returns a URL the analysis
// service can fetch them from
type ResumeStore interface {
	PutResume(ctx context.Context, subjectID, filename string, body io.Reader, size int64) (string, error)
}

// AnalysisPublisher hands resume analysis requests to the analysis service
type AnalysisPublisher interface {
	PublishAnalysisRequest(ctx context.Context, req models.AnalysisRequest) error
}
