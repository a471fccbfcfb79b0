// package formatter renders upload history and material listings as CSV, Markdown, plain text, or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format names an export format.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a file extension ("md", ".csv").
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Export renders records in format.
func Export(records []*models.UploadRecord, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return HistoryToCSV(records)
	case FormatMarkdown:
		return HistoryToMarkdown(records, time.Now())
	case FormatJSON:
		return shared.MarshalJSON(records, true)
	default:
		return HistoryToText(records, time.Now())
	}
}

// WriteExport renders records and writes them to path.
func WriteExport(records []*models.UploadRecord, format Format, path string) error {
	data, err := Export(records, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// HistoryToCSV converts upload records to CSV with columns: Key, Notebook, Filename, Size, ContentType,
// MaterialID, State, Error, CreatedAt, UpdatedAt
func HistoryToCSV(records []*models.UploadRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Key", "Notebook", "Filename", "Size", "ContentType", "MaterialID", "State", "Error", "CreatedAt", "UpdatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.Key,
			rec.NotebookID,
			rec.Filename,
			strconv.FormatInt(rec.SizeBytes, 10),
			rec.ContentType,
			rec.MaterialID,
			rec.State,
			rec.Error,
			rec.Created.UTC().Format(time.RFC3339),
			rec.Updated.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown renders records as a table grouped under a summary line.
func HistoryToMarkdown(records []*models.UploadRecord, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Upload History\n\n")
	buf.WriteString(summary(records) + "\n\n")

	if len(records) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| File | Size | State | Material | When | Error |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	for _, rec := range records {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s | %s |\n",
			escapeCell(rec.Filename),
			humanize.IBytes(uint64(max(rec.SizeBytes, 0))),
			rec.State,
			orDash(rec.MaterialID),
			humanize.RelTime(rec.Created, now, "ago", "from now"),
			escapeCell(orDash(rec.Error)),
		)
	}

	return buf.Bytes(), nil
}

// HistoryToText converts records to plain text, one line per upload.
func HistoryToText(records []*models.UploadRecord, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(summary(records) + "\n")
	for i, rec := range records {
		fmt.Fprintf(&buf, "%d. %s (%s) %s", i+1, rec.Filename, humanize.IBytes(uint64(max(rec.SizeBytes, 0))), rec.State)
		if rec.MaterialID != "" {
			fmt.Fprintf(&buf, " [%s]", rec.MaterialID)
		}
		if rec.Error != "" {
			fmt.Fprintf(&buf, ": %s", rec.Error)
		}
		fmt.Fprintf(&buf, " - %s\n", humanize.RelTime(rec.Created, now, "ago", "from now"))
	}

	return buf.Bytes(), nil
}

// MaterialsToText lists the materials of a notebook.
func MaterialsToText(list *models.MaterialList) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Materials: %d\n", list.Total)
	for i, m := range list.Materials {
		fmt.Fprintf(&buf, "%d. %s (%s, %s) %s [%s]\n",
			i+1, m.Filename, humanize.IBytes(uint64(max(m.FileSize, 0))), m.MimeType, m.ProcessingStatus, m.ID)
	}
	return buf.Bytes()
}

// MaterialToText describes a single material.
func MaterialToText(m *models.Material) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "ID: %s\n", m.ID)
	fmt.Fprintf(&buf, "Notebook: %s\n", m.NotebookID)
	fmt.Fprintf(&buf, "File: %s\n", m.Filename)
	fmt.Fprintf(&buf, "Path: %s\n", m.FilePath)
	fmt.Fprintf(&buf, "Size: %s\n", humanize.IBytes(uint64(max(m.FileSize, 0))))
	fmt.Fprintf(&buf, "Type: %s\n", m.MimeType)
	fmt.Fprintf(&buf, "Status: %s\n", m.ProcessingStatus)
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&buf, "Created: %s\n", m.CreatedAt.Format(time.RFC3339))
	}
	return buf.Bytes()
}

func summary(records []*models.UploadRecord) string {
	counts := map[string]int{}
	var total int64
	for _, rec := range records {
		counts[rec.State]++
		total += max(rec.SizeBytes, 0)
	}
	return fmt.Sprintf("Uploads: %d (%s) | completed: %d | failed: %d | in flight: %d",
		len(records), humanize.IBytes(uint64(total)),
		counts["completed"], counts["failed"], counts["uploading"]+counts["processing"])
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
