package endpoints

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataspect/dataspect/internal/dataset"
	"github.com/dataspect/dataspect/internal/home"
)

// UploadResponse is returned by the analysis submission endpoints.
type UploadResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// parseUpload enforces the upload size cap and parses the multipart form.
// Writes the error response itself and returns false on failure.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20))
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return false
	}
	return true
}

// filePart pulls one named file out of a parsed multipart form and runs the
// upload validation chain: present, named, allow-listed extension.
func filePart(r *http.Request, field string) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, fmt.Errorf("no %s part in the request", field)
	}
	fh := r.MultipartForm.File[field][0]
	if fh.Filename == "" {
		return nil, errors.New("no file selected")
	}
	if !dataset.ExtensionAllowed(fh.Filename) {
		return nil, errors.New("Invalid file type. Allowed types: csv, xlsx, xls, json")
	}
	return fh, nil
}

// saveUpload persists an uploaded part to destPath, rejecting empty files.
func saveUpload(fh *multipart.FileHeader, destPath string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to save file: %w", err)
	}
	if n == 0 {
		os.Remove(destPath)
		return errors.New("uploaded file is empty")
	}
	return nil
}

// saveJobInput validates the "file" part and saves it under the uploads root
// as <jobID>_<sanitized name>.
func saveJobInput(r *http.Request, jobID string, h *home.Dir) (name, path string, err error) {
	fh, err := filePart(r, "file")
	if err != nil {
		return "", "", err
	}
	name = sanitizeFilename(fh.Filename)
	path = h.UploadPath(jobID, name)
	if err := saveUpload(fh, path); err != nil {
		return "", "", err
	}
	return name, path, nil
}

// sanitizeFilename reduces a client-supplied filename to a safe path
// component: base name only, path separators and control characters
// replaced.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case r < 0x20 || r == 0x7f:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return name
}
