package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mtx/internal/shared"
	tu "github.com/desertthunder/mtx/internal/testing"
)

func TestUploadCommand(t *testing.T) {
	t.Run("uploads every file and records history", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		notes := writeFile(t, h.dir, "notes.md", 2048)
		paper := writeFile(t, h.dir, "paper.pdf", 4096)

		if err := h.run("upload", "nb-1", notes, paper); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		for _, want := range []string{"✓ notes.md", "✓ paper.pdf", "2 uploaded, 0 failed"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}

		h.backend.mu.Lock()
		objects := append([]string(nil), h.backend.objects...)
		registered := len(h.backend.registered)
		h.backend.mu.Unlock()
		if len(objects) != 2 || registered != 2 {
			t.Fatalf("expected 2 objects and 2 registrations, got %d/%d", len(objects), registered)
		}
		for _, obj := range objects {
			if !strings.HasPrefix(obj, "user-1/") {
				t.Errorf("expected object under owner folder, got %s", obj)
			}
		}

		repo, err := h.runner.uploadHistory()
		if err != nil {
			t.Fatalf("failed to open history: %v", err)
		}
		records, err := repo.List(map[string]any{"notebook_id": "nb-1"})
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 history records, got %d", len(records))
		}
		for _, rec := range records {
			if rec.State != "completed" || rec.MaterialID == "" {
				t.Errorf("expected completed record with material id, got %+v", rec)
			}
		}
	})

	t.Run("rejected files fail the command without stopping the others", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		notes := writeFile(t, h.dir, "notes.md", 16)
		binary := writeFile(t, h.dir, "tool.exe", 16)

		err := h.run("upload", "nb-1", notes, binary)
		if err == nil || !strings.Contains(err.Error(), "1 of 2 uploads failed") {
			t.Fatalf("expected 1 of 2 failure, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, "File type not supported. Allowed types: .pdf, .txt, .md, .docx") {
			t.Errorf("expected rejection message, got:\n%s", out)
		}
		if !strings.Contains(out, "✓ notes.md") {
			t.Errorf("expected notes.md to complete, got:\n%s", out)
		}
	})

	t.Run("processing failure is reported per file", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		h.backend.final["broken.pdf"] = "failed"
		broken := writeFile(t, h.dir, "broken.pdf", 16)

		err := h.run("upload", "--json", "nb-1", broken)
		if err == nil {
			t.Fatal("expected failure")
		}

		var results []uploadResult
		if err := json.Unmarshal([]byte(h.output.String()), &results); err != nil {
			t.Fatalf("expected JSON output, got %v:\n%s", err, h.output.String())
		}
		if len(results) != 1 || results[0].State != "failed" || results[0].Error != "File processing failed" {
			t.Errorf("unexpected results %+v", results)
		}
	})

	t.Run("owner is resolved from the access token", func(t *testing.T) {
		h := newHarness(t, "", "secret")
		notes := writeFile(t, h.dir, "notes.md", 16)

		if err := h.run("upload", "-q", "nb-1", notes); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		h.backend.mu.Lock()
		defer h.backend.mu.Unlock()
		if h.backend.authHeader != "Bearer secret" {
			t.Errorf("expected bearer token on auth lookup, got %q", h.backend.authHeader)
		}
		if len(h.backend.objects) != 1 || !strings.HasPrefix(h.backend.objects[0], "user-from-token/") {
			t.Errorf("expected object under resolved owner, got %v", h.backend.objects)
		}
	})

	t.Run("missing owner and token", func(t *testing.T) {
		h := newHarness(t, "", "")
		notes := writeFile(t, h.dir, "notes.md", 16)

		if err := h.run("upload", "nb-1", notes); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("upload"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument without notebook, got %v", err)
		}
		if err := h.run("upload", "nb-1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument without files, got %v", err)
		}
		if err := h.run("upload", "nb-1", filepath.Join(h.dir, "missing.pdf")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for missing file, got %v", err)
		}
	})
}

func TestLookupCommands(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("status", "m1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "m1") || !strings.Contains(h.output.String(), "completed") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("status of unknown material", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		err := h.run("status", "nope")
		if !errors.Is(err, shared.ErrMaterialNotFound) {
			t.Errorf("expected ErrMaterialNotFound, got %v", err)
		}
	})

	t.Run("materials list", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("materials", "list", "nb-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Materials: 1") || !strings.Contains(out, "notes.md (2.0 KiB") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("materials delete", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("materials", "delete", "m1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "Deleted m1") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("api post rejects invalid JSON", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("api", "post", "--data", "{nope", "/api/x"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("api get prints JSON", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("api", "get", "/api/materials/m1/status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), `"processing_status": "completed"`) {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})
}

func TestHistoryAndSetupCommands(t *testing.T) {
	t.Run("history export after upload", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		notes := writeFile(t, h.dir, "notes.md", 16)
		if err := h.run("upload", "-q", "nb-1", notes); err != nil {
			t.Fatalf("upload failed: %v", err)
		}

		h.output.Reset()
		if err := h.run("history", "--format", "csv"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := h.output.String()
		if !strings.HasPrefix(out, "Key,Notebook,Filename") || !strings.Contains(out, "notes.md") {
			t.Errorf("unexpected CSV:\n%s", out)
		}

		target := filepath.Join(h.dir, "history.md")
		if err := h.run("history", "--format", "md", "--output", target, "--state", "completed"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(data), "# Upload History") {
			t.Errorf("unexpected markdown:\n%s", data)
		}
	})

	t.Run("history rejects unknown state and format", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("history", "--state", "lost"); err == nil {
			t.Error("expected error for unknown state")
		}
		if err := h.run("history", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("setup database runs, reports and rolls back", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		h.output.Reset()
		if err := h.run("setup", "database", "--status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "0000  applied") {
			t.Errorf("expected applied migration, got %q", h.output.String())
		}

		h.output.Reset()
		if err := h.run("setup", "database", "--rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		h.output.Reset()
		if err := h.run("setup", "database", "--status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "No migrations applied") {
			t.Errorf("expected no migrations after rollback, got %q", h.output.String())
		}
	})

	t.Run("setup config refuses to overwrite", func(t *testing.T) {
		h := newHarness(t, "user-1", "")

		if err := h.run("setup", "config"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}

		target := filepath.Join(h.dir, "fresh.toml")
		if err := h.run("setup", "config", target); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(target); err != nil {
			t.Errorf("expected config file: %v", err)
		}
	})

	t.Run("setup config defaults to the working directory", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		dir := t.TempDir()
		wd := tu.MustGetwd(t)
		tu.MustChdir(t, dir)
		t.Cleanup(func() { tu.MustChdir(t, wd) })

		if err := newApp(h.runner).Run(context.Background(), []string{"mtx", "setup", "config"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		if !strings.Contains(h.output.String(), "Configuration written to config.toml") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("setup database creates the database directory", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		nested := filepath.Join(h.dir, "data", "history.db")
		config := strings.Replace(tu.MustReadFile(t, h.config), filepath.Join(h.dir, "mtx.db"), nested, 1)
		if err := os.WriteFile(h.config, []byte(config), 0644); err != nil {
			t.Fatalf("failed to rewrite config: %v", err)
		}

		if err := h.run("setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertDirExists(t, filepath.Join(h.dir, "data"))
		tu.AssertFileExists(t, nested)
	})

	t.Run("explicit missing config is an error", func(t *testing.T) {
		h := newHarness(t, "user-1", "")
		h.config = filepath.Join(h.dir, "absent.toml")

		if err := h.run("status", "m1"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}
