package models

import (
	"errors"
	"time"
)

// UploadRecord is the persisted history of one file pipeline.
type UploadRecord struct {
	Key         string    `json:"key"`
	NotebookID  string    `json:"notebook_id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	MaterialID  string    `json:"material_id,omitempty"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	Created     time.Time `json:"created_at"`
	Updated     time.Time `json:"updated_at"`
}

func (u *UploadRecord) ID() string           { return u.Key }
func (u *UploadRecord) CreatedAt() time.Time { return u.Created }
func (u *UploadRecord) UpdatedAt() time.Time { return u.Updated }

// Validate checks required fields.
func (u *UploadRecord) Validate() error {
	if u.Key == "" {
		return errors.New("upload key is required")
	}
	if u.NotebookID == "" {
		return errors.New("notebook id is required")
	}
	if u.Filename == "" {
		return errors.New("filename is required")
	}
	if u.State == "" {
		return errors.New("state is required")
	}
	return nil
}
