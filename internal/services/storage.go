package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

const (
	defaultBucket       = "materials"
	defaultCacheControl = "3600"
)

// StorageService uploads objects to a Supabase Storage bucket.
type StorageService struct {
	baseURL    string
	bucket     string
	apiKey     string
	httpClient *http.Client
}

// NewStorageService creates a storage client for cfg.
//
// client should carry the bearer token (see [NewAuthClient]); nil uses [http.DefaultClient].
func NewStorageService(cfg shared.StorageConfig, client *http.Client) *StorageService {
	if client == nil {
		client = http.DefaultClient
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}
	return &StorageService{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		bucket:     bucket,
		apiKey:     cfg.APIKey,
		httpClient: client,
	}
}

// Name returns the service name used in errors.
func (s *StorageService) Name() string { return "storage" }

// UploadObject writes size bytes from body to objectPath inside the bucket.
//
// Calls POST /storage/v1/object/{bucket}/{path}. onProgress is invoked as the request body is consumed,
// never with a smaller value than before.
func (s *StorageService) UploadObject(
	ctx context.Context, objectPath string, body io.Reader, size int64, opts models.UploadOptions, onProgress models.ProgressFunc,
) (*models.StoredObject, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapeObjectPath(objectPath))

	reader := newProgressReader(body, size, onProgress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	cacheControl := opts.CacheControl
	if cacheControl == "" {
		cacheControl = defaultCacheControl
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("cache-control", "max-age="+cacheControl)
	req.Header.Set("x-upsert", fmt.Sprintf("%t", opts.Upsert))
	s.setKey(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(s.Name(), resp)
	}

	reader.finish()

	var result struct {
		Key string `json:"Key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &models.StoredObject{Path: objectPath, Key: result.Key}, nil
}

// Owner returns the user id the access token belongs to.
//
// Calls GET /auth/v1/user.
func (s *StorageService) Owner(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	s.setKey(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeError("auth", resp)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: token has no user", shared.ErrNotAuthenticated)
	}
	return user.ID, nil
}

func (s *StorageService) setKey(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}
}

func escapeObjectPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// progressReader counts bytes handed to the transport and reports whole percentages.
type progressReader struct {
	r          io.Reader
	total      int64
	onProgress models.ProgressFunc

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, total int64, onProgress models.ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, onProgress: onProgress, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		pct := 100
		if p.total > 0 && p.read < p.total {
			pct = int(p.read * 100 / p.total)
		}
		p.report(pct)
		p.mu.Unlock()
	}
	return n, err
}

// finish reports 100 once the server accepted the body, which covers empty bodies.
func (p *progressReader) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report(100)
}

func (p *progressReader) report(pct int) {
	if p.onProgress == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.onProgress(pct)
}
