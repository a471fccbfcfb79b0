package models

import (
	"time"
)

// Model defines the base interface for persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// ProcessingStatus is the backend's view of a material.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether the backend will not change the status again.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Material is a material as returned by GET /api/materials/{id}.
type Material struct {
	ID               string           `json:"id"`
	NotebookID       string           `json:"notebook_id"`
	Filename         string           `json:"filename"`
	FilePath         string           `json:"file_path"`
	FileSize         int64            `json:"file_size"`
	MimeType         string           `json:"mime_type"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// MaterialList is the body of GET /api/notebooks/{id}/materials.
type MaterialList struct {
	Materials []Material `json:"materials"`
	Total     int        `json:"total"`
}

// CreateMaterialRequest registers an object already written to storage.
//
// MaterialID is generated client side and matches the object name in storage.
type CreateMaterialRequest struct {
	Filename   string `json:"filename"`
	FilePath   string `json:"file_path"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `json:"mime_type"`
	MaterialID string `json:"material_id"`
}

// UploadResponse is returned by the registration endpoint.
type UploadResponse struct {
	MaterialID       string           `json:"materialId"`
	Filename         string           `json:"filename"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
}

// MaterialStatus is the body of GET /api/materials/{id}/status.
type MaterialStatus struct {
	ID               string           `json:"id"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	Filename         string           `json:"filename"`
}

// StoredObject describes an object written to storage.
type StoredObject struct {
	Path string `json:"path"`
	Key  string `json:"Key,omitempty"`
}

// ProgressFunc receives upload progress as a percentage in [0, 100].
type ProgressFunc func(percent int)

// UploadOptions are per-object storage settings.
type UploadOptions struct {
	ContentType  string
	CacheControl string // seconds, sent as max-age
	Upsert       bool
}
