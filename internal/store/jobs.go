package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

const jobColumns = `id, title, company, location, salary, tags, posted_date, match_score,
	description, requirements, benefits, recommendation_reason`

// JobStore serves the job catalog
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

// ListJobs returns one page of jobs matching q.Search in title, company or
// description, best match first, and the total number of matches.
func (s *JobStore) ListJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, int, error) {
	q = q.Normalize()
	pattern := "%" + q.Search + "%"

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM jobs
		WHERE $1 = '' OR title ILIKE $2 OR company ILIKE $2 OR description ILIKE $2
	`, q.Search, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE $1 = '' OR title ILIKE $2 OR company ILIKE $2 OR description ILIKE $2
		ORDER BY match_score DESC, id
		LIMIT $3 OFFSET $4
	`, q.Search, pattern, q.Size, q.Page*q.Size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query jobs: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// GetJob returns models.ErrNotFound for unknown ids.
func (s *JobStore) GetJob(ctx context.Context, id string) (*models.JobPosting, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, scanJob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// RecommendedJobs returns up to limit jobs ordered by match score.
func (s *JobStore) RecommendedJobs(ctx context.Context, limit int) ([]models.JobPosting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		ORDER BY match_score DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommended jobs: %w", err)
	}
	return collectJobs(rows)
}

// UpsertJob inserts or replaces a catalog entry.
func (s *JobStore) UpsertJob(ctx context.Context, j models.JobPosting) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			salary = EXCLUDED.salary,
			tags = EXCLUDED.tags,
			posted_date = EXCLUDED.posted_date,
			match_score = EXCLUDED.match_score,
			description = EXCLUDED.description,
			requirements = EXCLUDED.requirements,
			benefits = EXCLUDED.benefits,
			recommendation_reason = EXCLUDED.recommendation_reason
	`, j.ID, j.Title, j.Company, j.Location, j.Salary, nonNil(j.Tags), j.PostedDate, j.MatchScore,
		j.Description, nonNil(j.Requirements), nonNil(j.Benefits), j.RecommendationReason)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", j.ID, err)
	}
	return nil
}

func collectJobs(rows pgx.Rows) ([]models.JobPosting, error) {
	jobs, err := pgx.CollectRows(rows, scanJob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.CollectableRow) (models.JobPosting, error) {
	var j models.JobPosting
	err := row.Scan(
		&j.ID,
		&j.Title,
		&j.Company,
		&j.Location,
		&j.Salary,
		&j.Tags,
		&j.PostedDate,
		&j.MatchScore,
		&j.Description,
		&j.Requirements,
		&j.Benefits,
		&j.RecommendationReason,
	)
	return j, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
