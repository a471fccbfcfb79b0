package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/tasks"
)

// UploadRepository implements [models.Repository] for [models.UploadRecord] persistence.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new [UploadRepository] with the given database connection
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

const uploadColumns = `id, notebook_id, filename, size_bytes, content_type, material_id, state, error, created_at, updated_at`

// Create inserts a new upload record.
func (r *UploadRepository) Create(rec *models.UploadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if rec.Created.IsZero() {
		rec.Created = now
	}
	if rec.Updated.IsZero() {
		rec.Updated = rec.Created
	}

	_, err := r.db.Exec(`INSERT INTO uploads (`+uploadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.NotebookID, rec.Filename, rec.SizeBytes, rec.ContentType,
		nullString(rec.MaterialID), rec.State, nullString(rec.Error), rec.Created, rec.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

// Get retrieves an upload by tracking key.
func (r *UploadRepository) Get(id string) (*models.UploadRecord, error) {
	row := r.db.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
	rec, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: upload %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload: %w", err)
	}
	return rec, nil
}

// Update stores the mutable fields of rec: material id, state and error.
func (r *UploadRepository) Update(rec *models.UploadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	rec.Updated = time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE uploads
		SET material_id = COALESCE(?, material_id), state = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, nullString(rec.MaterialID), rec.State, nullString(rec.Error), rec.Updated, rec.Key)
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}
	return checkAffected(result, rec.Key)
}

// Upsert creates rec or updates its state when the key already exists.
func (r *UploadRepository) Upsert(rec *models.UploadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if rec.Created.IsZero() {
		rec.Created = now
	}
	rec.Updated = now

	_, err := r.db.Exec(`INSERT INTO uploads (`+uploadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			material_id = COALESCE(excluded.material_id, uploads.material_id),
			state = excluded.state,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		rec.Key, rec.NotebookID, rec.Filename, rec.SizeBytes, rec.ContentType,
		nullString(rec.MaterialID), rec.State, nullString(rec.Error), rec.Created, rec.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert upload: %w", err)
	}
	return nil
}

// Delete removes an upload record.
func (r *UploadRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return checkAffected(result, id)
}

// List retrieves uploads matching criteria, oldest first.
//
// Supported criteria: "notebook_id", "state", "material_id" (string) and "limit" (int).
func (r *UploadRepository) List(criteria map[string]any) ([]*models.UploadRecord, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE 1 = 1`
	args := []any{}

	for _, col := range []string{"notebook_id", "state", "material_id"} {
		if v, ok := criteria[col].(string); ok && v != "" {
			query += " AND " + col + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY created_at ASC, rowid ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var records []*models.UploadRecord
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Prune deletes records last updated before cutoff and returns how many were removed.
func (r *UploadRepository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM uploads WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune uploads: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner) (*models.UploadRecord, error) {
	var (
		rec        models.UploadRecord
		materialID sql.NullString
		errMsg     sql.NullString
	)
	err := s.Scan(&rec.Key, &rec.NotebookID, &rec.Filename, &rec.SizeBytes, &rec.ContentType,
		&materialID, &rec.State, &errMsg, &rec.Created, &rec.Updated)
	if err != nil {
		return nil, err
	}
	rec.MaterialID = materialID.String
	rec.Error = errMsg.String
	return &rec, nil
}

// UploadRecorder adapts [UploadRepository] to [tasks.Recorder].
type UploadRecorder struct {
	repo *UploadRepository
}

// NewUploadRecorder creates a recorder writing to repo.
func NewUploadRecorder(repo *UploadRepository) *UploadRecorder {
	return &UploadRecorder{repo: repo}
}

// RecordUpload upserts the current state of u.
func (r *UploadRecorder) RecordUpload(u tasks.TrackedUpload) error {
	return r.repo.Upsert(RecordFromUpload(u))
}

// RecordFromUpload converts a tracked upload to its persisted form.
func RecordFromUpload(u tasks.TrackedUpload) *models.UploadRecord {
	return &models.UploadRecord{
		Key:         u.Key,
		NotebookID:  u.NotebookID,
		Filename:    u.File.Name,
		SizeBytes:   u.File.Size,
		ContentType: u.File.ContentType,
		MaterialID:  u.RemoteID,
		State:       u.State.String(),
		Error:       u.ErrorDetail(),
		Created:     u.StartedAt.UTC(),
	}
}
