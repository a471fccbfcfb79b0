package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/mtx/internal/models"
)

// StoredObject is an object captured by [FakeStorage].
type StoredObject struct {
	Path    string
	Data    []byte
	Options models.UploadOptions
}

// FakeStorage is an in-memory object store.
//
// Uploads read the whole body and report progress in Steps increments. Err, when set, fails every
// upload; FailContent fails only objects whose bytes match a key.
type FakeStorage struct {
	Steps       int
	Err         error
	FailContent map[string]error

	// Block, when non-nil, is received from before the upload returns.
	Block chan struct{}

	mu      sync.Mutex
	objects []StoredObject
}

// UploadObject implements the storage collaborator.
func (f *FakeStorage) UploadObject(
	ctx context.Context, path string, body io.Reader, size int64, opts models.UploadOptions, onProgress models.ProgressFunc,
) (*models.StoredObject, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	steps := max(f.Steps, 1)
	for i := 1; i <= steps; i++ {
		if onProgress != nil {
			onProgress(i * 100 / steps)
		}
	}

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailContent[string(data)]; ok {
		return nil, err
	}
	f.objects = append(f.objects, StoredObject{Path: path, Data: data, Options: opts})
	return &models.StoredObject{Path: path, Key: "materials/" + path}, nil
}

// Objects returns a copy of the stored objects in upload order.
func (f *FakeStorage) Objects() []StoredObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StoredObject(nil), f.objects...)
}

// FakeMaterials is an in-memory notebook backend with scripted processing statuses.
//
// Statuses maps a material id to the sequence returned by successive GetStatus calls; the last entry
// repeats once the script is exhausted. DefaultStatuses applies to ids without a script.
type FakeMaterials struct {
	Statuses        map[string][]models.ProcessingStatus
	DefaultStatuses []models.ProcessingStatus
	CreateErr       error
	StatusErr       error
	// IDs overrides the returned material id per filename.
	IDs map[string]string

	mu        sync.Mutex
	created   []models.CreateMaterialRequest
	calls     map[string]int
	materials map[string]models.Material
}

// ErrNoScript is returned by GetStatus for ids with no scripted statuses.
var ErrNoScript = errors.New("no scripted status")

// CreateMaterial records the request and returns its material id.
func (f *FakeMaterials) CreateMaterial(ctx context.Context, notebookID string, req models.CreateMaterialRequest) (*models.UploadResponse, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := req.MaterialID
	if override, ok := f.IDs[req.Filename]; ok {
		id = override
	}

	f.created = append(f.created, req)
	if f.materials == nil {
		f.materials = make(map[string]models.Material)
	}
	f.materials[id] = models.Material{
		ID:               id,
		NotebookID:       notebookID,
		Filename:         req.Filename,
		FilePath:         req.FilePath,
		FileSize:         req.FileSize,
		MimeType:         req.MimeType,
		ProcessingStatus: models.StatusPending,
	}

	return &models.UploadResponse{MaterialID: id, Filename: req.Filename, ProcessingStatus: models.StatusPending}, nil
}

// GetStatus returns the next scripted status for materialID.
func (f *FakeMaterials) GetStatus(ctx context.Context, materialID string) (*models.MaterialStatus, error) {
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls[materialID]
	f.calls[materialID] = n + 1

	script, ok := f.Statuses[materialID]
	if !ok {
		script = f.DefaultStatuses
	}
	if len(script) == 0 {
		return nil, ErrNoScript
	}

	status := script[min(n, len(script)-1)]
	return &models.MaterialStatus{ID: materialID, ProcessingStatus: status, Filename: f.materials[materialID].Filename}, nil
}

// Calls returns how many times GetStatus was called for materialID.
func (f *FakeMaterials) Calls(materialID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[materialID]
}

// Created returns a copy of every registration request.
func (f *FakeMaterials) Created() []models.CreateMaterialRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CreateMaterialRequest(nil), f.created...)
}
