package models

import (
	"time"
)

// DocumentStatus is the lifecycle state of a saved document
type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "draft"
	DocumentCompleted DocumentStatus = "completed"
)

// SavedDocument is the durable record produced when a workflow session finishes
type SavedDocument struct {
	ID          string         `json:"id" db:"id"`
	SubjectID   string         `json:"userId,omitempty" db:"user_id"`
	Title       string         `json:"jobTitle" db:"title"`
	Counterpart string         `json:"company" db:"counterpart"`
	Content     string         `json:"content" db:"content"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	Status      DocumentStatus `json:"status" db:"status"`
}

// AppendDocumentRequest is the payload accepted by the document endpoint
type AppendDocumentRequest struct {
	Title       string         `json:"jobTitle" binding:"required"`
	Counterpart string         `json:"company" binding:"required"`
	Content     string         `json:"content" binding:"required"`
	Status      DocumentStatus `json:"status" binding:"required,oneof=draft completed"`
}

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of a session's refinement conversation
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
