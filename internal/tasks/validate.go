package tasks

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/mtx/internal/shared"
)

const (
	DefaultMaxFileSize int64 = 50 * 1024 * 1024
	fallbackMimeType         = "application/octet-stream"
)

var (
	DefaultExtensions   = []string{".pdf", ".txt", ".md", ".docx"}
	DefaultContentTypes = []string{
		"application/pdf",
		"text/plain",
		"text/markdown",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}

	canonicalTypes = map[string]string{
		".pdf":  "application/pdf",
		".txt":  "text/plain",
		".md":   "text/markdown",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

// File is a user-selected file. Open is called once per upload attempt.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileFromPath stats path and guesses its content type from the extension.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, path)
	}

	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: baseMediaType(mime.TypeByExtension(filepath.Ext(path))),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileFromBytes wraps an in-memory payload.
func FileFromBytes(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Extension is the lower-cased extension including the dot, or "".
func (f File) Extension() string {
	ext := shared.FileExtension(f.Name)
	if ext == "" {
		return ""
	}
	return "." + strings.ToLower(ext)
}

// Validator checks files against size and type limits before any network call.
type Validator struct {
	MaxSize      int64
	Extensions   []string
	ContentTypes []string
}

// DefaultValidator accepts pdf, txt, md and docx files up to 50 MiB.
func DefaultValidator() *Validator {
	return &Validator{MaxSize: DefaultMaxFileSize, Extensions: DefaultExtensions, ContentTypes: DefaultContentTypes}
}

// NewValidator builds a validator from the [upload] config section; unset values fall back to the defaults.
func NewValidator(cfg shared.UploadConfig) *Validator {
	v := DefaultValidator()
	if cfg.MaxFileSizeMB > 0 {
		v.MaxSize = cfg.MaxFileSizeBytes()
	}
	if len(cfg.AllowedExtensions) > 0 {
		v.Extensions = normalizeExtensions(cfg.AllowedExtensions)
	}
	if len(cfg.AllowedContentTypes) > 0 {
		v.ContentTypes = cfg.AllowedContentTypes
	}
	return v
}

// Validate returns nil or an error matching [ErrFileTooLarge] or [ErrUnsupportedType].
//
// The size rule is checked first. The extension is authoritative: a declared content type outside the
// allow-list never rejects a file whose extension is allowed.
func (v *Validator) Validate(f File) error {
	if f.Size > v.MaxSize {
		return newKindError(ErrFileTooLarge, fmt.Sprintf("File size exceeds %s limit", formatLimit(v.MaxSize)), nil)
	}

	if ext := f.Extension(); ext == "" || !slices.Contains(v.Extensions, ext) {
		return newKindError(ErrUnsupportedType,
			"File type not supported. Allowed types: "+strings.Join(v.Extensions, ", "), nil)
	}

	return nil
}

// ContentTypeTrusted reports whether the declared content type is present and allowed.
func (v *Validator) ContentTypeTrusted(f File) bool {
	ct := baseMediaType(f.ContentType)
	return ct != "" && slices.Contains(v.ContentTypes, ct)
}

// MimeType is the type sent at registration: the declared type, else the canonical type of the extension.
func (v *Validator) MimeType(f File) string {
	if ct := strings.TrimSpace(f.ContentType); ct != "" {
		return ct
	}
	if ct, ok := canonicalTypes[f.Extension()]; ok {
		return ct
	}
	return fallbackMimeType
}

func baseMediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func formatLimit(n int64) string {
	if n%(1024*1024) == 0 {
		return fmt.Sprintf("%dMB", n/(1024*1024))
	}
	return fmt.Sprintf("%d bytes", n)
}
