package tasks

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mtx/internal/shared"
)

func TestValidator(t *testing.T) {
	v := DefaultValidator()

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			file    File
			wantErr error
			wantMsg string
		}{
			{"pdf", File{Name: "notes.pdf", Size: 1024, ContentType: "application/pdf"}, nil, ""},
			{"upper case extension", File{Name: "NOTES.PDF", Size: 1024}, nil, ""},
			{"markdown", File{Name: "readme.md", Size: 10, ContentType: "text/markdown"}, nil, ""},
			{"docx", File{Name: "essay.docx", Size: 10}, nil, ""},
			{"txt", File{Name: "plain.txt", Size: 0}, nil, ""},
			{"exactly at limit", File{Name: "big.pdf", Size: DefaultMaxFileSize}, nil, ""},
			{"over limit", File{Name: "big.pdf", Size: DefaultMaxFileSize + 1}, ErrFileTooLarge, "File size exceeds 50MB limit"},
			{"size checked before type", File{Name: "big.exe", Size: DefaultMaxFileSize + 1}, ErrFileTooLarge, ""},
			{"unsupported extension", File{Name: "image.png", Size: 10, ContentType: "image/png"}, ErrUnsupportedType,
				"File type not supported. Allowed types: .pdf, .txt, .md, .docx"},
			{"no extension", File{Name: "Makefile", Size: 10}, ErrUnsupportedType, ""},
			{"trailing dot", File{Name: "notes.", Size: 10}, ErrUnsupportedType, ""},
			{"double extension", File{Name: "notes.pdf.exe", Size: 10}, ErrUnsupportedType, ""},
			{"pdf with empty type", File{Name: "scan.pdf", Size: 10, ContentType: ""}, nil, ""},
			{"pdf with mismatched type", File{Name: "scan.pdf", Size: 10, ContentType: "application/octet-stream"}, nil, ""},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				err := v.Validate(tt.file)
				if tt.wantErr == nil {
					if err != nil {
						t.Fatalf("expected file to be accepted, got %v", err)
					}
					return
				}

				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected validation errors to match ErrValidation")
				}
				if tt.wantMsg != "" && err.Error() != tt.wantMsg {
					t.Errorf("expected message %q, got %q", tt.wantMsg, err.Error())
				}
			})
		}
	})

	t.Run("ContentTypeTrusted", func(t *testing.T) {
		tc := []struct {
			ct   string
			want bool
		}{
			{"application/pdf", true},
			{"text/markdown; charset=utf-8", true},
			{"", false},
			{"application/octet-stream", false},
		}
		for _, tt := range tc {
			if got := v.ContentTypeTrusted(File{Name: "a.pdf", ContentType: tt.ct}); got != tt.want {
				t.Errorf("ContentTypeTrusted(%q) = %v, want %v", tt.ct, got, tt.want)
			}
		}
	})

	t.Run("MimeType", func(t *testing.T) {
		tc := []struct {
			file File
			want string
		}{
			{File{Name: "a.pdf", ContentType: "application/x-pdf"}, "application/x-pdf"},
			{File{Name: "a.pdf"}, "application/pdf"},
			{File{Name: "a.MD"}, "text/markdown"},
			{File{Name: "a.docx"}, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
			{File{Name: "a.bin"}, "application/octet-stream"},
		}
		for _, tt := range tc {
			if got := v.MimeType(tt.file); got != tt.want {
				t.Errorf("MimeType(%s) = %q, want %q", tt.file.Name, got, tt.want)
			}
		}
	})

	t.Run("NewValidator", func(t *testing.T) {
		cfg := shared.UploadConfig{MaxFileSizeMB: 1, AllowedExtensions: []string{"PDF", ".csv"}}
		v := NewValidator(cfg)

		if v.MaxSize != 1024*1024 {
			t.Errorf("expected 1 MiB limit, got %d", v.MaxSize)
		}
		if err := v.Validate(File{Name: "data.csv", Size: 1}); err != nil {
			t.Errorf("expected csv to be allowed, got %v", err)
		}
		if err := v.Validate(File{Name: "a.pdf", Size: 2 * 1024 * 1024}); err == nil ||
			!strings.Contains(err.Error(), "1MB") {
			t.Errorf("expected 1MB limit error, got %v", err)
		}
		if err := v.Validate(File{Name: "a.txt", Size: 1}); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("expected txt to be rejected by custom list, got %v", err)
		}
	})

	t.Run("FileFromPath", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "notes.pdf")
		if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		f, err := FileFromPath(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.Name != "notes.pdf" || f.Size != 8 {
			t.Errorf("unexpected file %+v", f)
		}

		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open: %v", err)
		}
		rc.Close()

		if _, err := FileFromPath(dir); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected directories to be rejected, got %v", err)
		}
		if _, err := FileFromPath(filepath.Join(dir, "missing.pdf")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
