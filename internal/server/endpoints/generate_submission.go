package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/dataset"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// SubmissionResponse is returned by the submission generator.
type SubmissionResponse struct {
	JobID         string `json:"job_id"`
	SubmissionURL string `json:"submission_url"`
	Message       string `json:"message"`
}

// GenerateSubmissionEndpoint handles POST /generate-submission. Unlike the
// analysis endpoints this runs synchronously: the saved schema is re-applied
// to the test file and inference runs before the response is written.
type GenerateSubmissionEndpoint struct {
	MaxUploadBytes int64
}

var _ api.Endpoint = (*GenerateSubmissionEndpoint)(nil)

func (e *GenerateSubmissionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/generate-submission", e.handler
}

func (e *GenerateSubmissionEndpoint) RequiresInit() bool { return true }

func (e *GenerateSubmissionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r, e.MaxUploadBytes) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	jobID := r.FormValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	store := svcctx.StoreFrom(r.Context())
	worker := svcctx.AutoMLFrom(r.Context())
	h := svcctx.HomeFrom(r.Context())

	rec, err := store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if rec.Type != jobstore.TypeAutoML || rec.Status != jobstore.StatusCompleted {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("job %s is not a completed ML analysis job", jobID))
		return
	}

	testPath, err := saveTempPart(r, "test_file", h.UploadsPath(), jobID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(testPath)

	samplePath, err := saveTempPart(r, "submission_file", h.UploadsPath(), jobID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(samplePath)

	// The sample submission is used only to cross-check row counts before
	// the (potentially slow) inference pass.
	testTable, err := dataset.Load(testPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read test file: %v", err))
		return
	}
	sampleTable, err := dataset.Load(samplePath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read submission file: %v", err))
		return
	}
	if len(sampleTable.Rows) != len(testTable.Rows) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("submission file has %d rows but test file has %d", len(sampleTable.Rows), len(testTable.Rows)))
		return
	}

	outPath, err := worker.GenerateSubmission(r.Context(), jobID, testPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("submission generation failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, SubmissionResponse{
		JobID:         jobID,
		SubmissionURL: "/outputs/" + filepath.Base(outPath),
		Message:       "Submission file generated",
	})
}

// saveTempPart validates and saves a named upload part to a temp file in
// dir, preserving the extension so the loader dispatches correctly.
func saveTempPart(r *http.Request, field, dir, jobID string) (string, error) {
	fh, err := filePart(r, field)
	if err != nil {
		return "", err
	}
	path, err := tempPath(dir, jobID+"_"+field, filepath.Ext(fh.Filename))
	if err != nil {
		return "", err
	}
	if err := saveUpload(fh, path); err != nil {
		return "", err
	}
	return path, nil
}

func tempPath(dir, prefix, ext string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	return path, nil
}

func (e *GenerateSubmissionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate-submission <job_id> <test_file> <submission_file>",
		Short: "Generate predictions for a completed AutoML job",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SubmissionResponse
			err := client.PostMultipart(cmd.Context(), "/generate-submission",
				map[string]string{"test_file": args[1], "submission_file": args[2]},
				map[string]string{"job_id": args[0]}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
