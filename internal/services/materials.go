package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/mtx/internal/models"
	"golang.org/x/time/rate"
)

const defaultAPIBaseURL string = "http://localhost:8000"

// MaterialsService is the client for the notebook backend's materials endpoints.
type MaterialsService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewMaterialsService creates a materials client. A nil limiter means no client-side rate limit.
func NewMaterialsService(baseURL string, client *http.Client, limiter *rate.Limiter) *MaterialsService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}

	return &MaterialsService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    limiter,
	}
}

// Name returns the service name.
func (m *MaterialsService) Name() string {
	return "materials"
}

func (m *MaterialsService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(m.Name(), resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CreateMaterial registers an uploaded object with a notebook.
//
// Calls POST /api/notebooks/{id}/materials.
func (m *MaterialsService) CreateMaterial(ctx context.Context, notebookID string, req models.CreateMaterialRequest) (*models.UploadResponse, error) {
	var resp models.UploadResponse
	endpoint := fmt.Sprintf("/api/notebooks/%s/materials", url.PathEscape(notebookID))
	if err := m.doRequest(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus fetches the processing status of a material.
//
// Calls GET /api/materials/{id}/status.
func (m *MaterialsService) GetStatus(ctx context.Context, materialID string) (*models.MaterialStatus, error) {
	var status models.MaterialStatus
	endpoint := fmt.Sprintf("/api/materials/%s/status", url.PathEscape(materialID))
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListMaterials lists materials of a notebook.
func (m *MaterialsService) ListMaterials(ctx context.Context, notebookID string) (*models.MaterialList, error) {
	var list models.MaterialList
	endpoint := fmt.Sprintf("/api/notebooks/%s/materials", url.PathEscape(notebookID))
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetMaterial fetches a single material.
func (m *MaterialsService) GetMaterial(ctx context.Context, materialID string) (*models.Material, error) {
	var material models.Material
	endpoint := fmt.Sprintf("/api/materials/%s", url.PathEscape(materialID))
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// DeleteMaterial removes a material. The backend answers 204.
func (m *MaterialsService) DeleteMaterial(ctx context.Context, materialID string) error {
	endpoint := fmt.Sprintf("/api/materials/%s", url.PathEscape(materialID))
	return m.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}
