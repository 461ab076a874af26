package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// DocumentStore keeps each subject's saved documents
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// AppendDocument inserts doc and returns it with its id and creation time.
func (s *DocumentStore) AppendDocument(ctx context.Context, doc models.SavedDocument) (models.SavedDocument, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (user_id, title, counterpart, content, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at
	`, doc.SubjectID, doc.Title, doc.Counterpart, doc.Content, string(doc.Status)).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return models.SavedDocument{}, fmt.Errorf("failed to append document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns subjectID's documents, oldest first.
func (s *DocumentStore) ListDocuments(ctx context.Context, subjectID string) ([]models.SavedDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, title, counterpart, content, created_at, status
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at, id
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SavedDocument, error) {
		var (
			d      models.SavedDocument
			status string
		)
		err := row.Scan(&d.ID, &d.SubjectID, &d.Title, &d.Counterpart, &d.Content, &d.CreatedAt, &status)
		d.Status = models.DocumentStatus(status)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}
	return docs, nil
}
