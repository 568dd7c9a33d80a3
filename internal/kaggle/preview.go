package kaggle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataspect/dataspect/internal/dataset"
)

const (
	defaultPreviewRows = 10
	maxPreviewRows     = 1000
	maxPreviewFiles    = 10
)

// FilePreview is the head of one tabular file inside a dataset archive.
// A file that could not be parsed carries Error instead of data.
type FilePreview struct {
	FileName string              `json:"file_name"`
	FilePath string              `json:"file_path"`
	Columns  []string            `json:"columns,omitempty"`
	Data     []map[string]string `json:"data,omitempty"`
	Shape    []int               `json:"shape,omitempty"`
	Dtypes   map[string]string   `json:"dtypes,omitempty"`
	FileSize int64               `json:"file_size,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// PreviewResult is the payload of a dataset preview.
type PreviewResult struct {
	Previews       []FilePreview `json:"previews"`
	DatasetRef     string        `json:"dataset_ref"`
	FilesProcessed int           `json:"files_processed"`
}

// Preview downloads the dataset archive and returns the head of its tabular
// files. With fileName set, only that file is previewed; otherwise every
// csv/tsv member up to a fixed cap. rows is clamped to [1, 1000].
func (c *Client) Preview(ctx context.Context, ref, fileName string, rows int) (*PreviewResult, error) {
	if rows < 1 {
		rows = defaultPreviewRows
	} else if rows > maxPreviewRows {
		rows = maxPreviewRows
	}

	archive, err := os.CreateTemp("", "dataspect-kaggle-*.zip")
	if err != nil {
		return nil, err
	}
	defer os.Remove(archive.Name())

	if _, err := c.Download(ctx, ref, archive); err != nil {
		archive.Close()
		return nil, err
	}
	if err := archive.Close(); err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(archive.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to open archive for %s: %w", ref, err)
	}
	defer zr.Close()

	scratch, err := os.MkdirTemp("", "dataspect-preview-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	result := &PreviewResult{DatasetRef: ref, Previews: []FilePreview{}}
	for _, entry := range zr.File {
		if result.FilesProcessed >= maxPreviewFiles {
			break
		}
		if entry.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(entry.Name)
		if fileName != "" {
			if base != fileName {
				continue
			}
		} else if !isTabular(base) {
			continue
		}

		preview := c.previewEntry(scratch, entry, rows)
		result.Previews = append(result.Previews, preview)
		if preview.Error == "" {
			result.FilesProcessed++
		}
		if fileName != "" {
			break
		}
	}
	return result, nil
}

func (c *Client) previewEntry(scratch string, entry *zip.File, rows int) FilePreview {
	preview := FilePreview{
		FileName: filepath.Base(entry.Name),
		FilePath: entry.Name,
	}

	path, err := extractEntry(scratch, entry)
	if err != nil {
		c.logger.Warn("could not preview file", "file", entry.Name, "error", err)
		preview.Error = fmt.Sprintf("could not preview file: %v", err)
		return preview
	}

	t, err := dataset.LoadHead(path, rows)
	if err != nil {
		c.logger.Warn("could not preview file", "file", entry.Name, "error", err)
		preview.Error = fmt.Sprintf("could not preview file: %v", err)
		return preview
	}

	nrows, ncols := t.Shape()
	preview.Columns = t.Columns
	preview.Data = t.Records(0)
	preview.Shape = []int{nrows, ncols}
	preview.Dtypes = make(map[string]string, ncols)
	for i, col := range t.Columns {
		preview.Dtypes[col] = string(t.Dtypes[i])
	}
	preview.FileSize = int64(entry.UncompressedSize64)
	return preview
}

// extractEntry writes one archive member into the scratch directory. Entry
// names are flattened to their base name, which also defeats path traversal
// in crafted archives.
func extractEntry(scratch string, entry *zip.File) (string, error) {
	base := filepath.Base(entry.Name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("unsafe archive member name %q", entry.Name)
	}
	dst := filepath.Join(scratch, base)

	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return "", err
	}
	return dst, f.Close()
}

func isTabular(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}
