package endpoints

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// RunAnalysisEndpoint handles POST /run-analysis with a multipart dataset
// upload. It returns a queued job id immediately; the notebook runs on a
// detached pipeline task.
type RunAnalysisEndpoint struct {
	MaxUploadBytes int64
}

var _ api.Endpoint = (*RunAnalysisEndpoint)(nil)

func (e *RunAnalysisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/run-analysis", e.handler
}

func (e *RunAnalysisEndpoint) RequiresInit() bool { return true }

func (e *RunAnalysisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r, e.MaxUploadBytes) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	store := svcctx.StoreFrom(r.Context())
	launcher := svcctx.LauncherFrom(r.Context())
	h := svcctx.HomeFrom(r.Context())

	jobID := uuid.NewString()
	name, path, err := saveJobInput(r, jobID, h)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store.Create(jobstore.Record{
		ID:       jobID,
		Type:     jobstore.TypeAnalysis,
		Filename: name,
		Filepath: path,
	})
	launcher.StartAnalysis(jobID)

	writeJSON(w, http.StatusOK, UploadResponse{
		JobID:   jobID,
		Status:  "queued",
		Message: "File uploaded and analysis started",
	})
}

func (e *RunAnalysisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "run-analysis <file>",
		Short: "Upload a dataset and start notebook analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp UploadResponse
			err := client.PostMultipart(cmd.Context(), "/run-analysis",
				map[string]string{"file": args[0]}, nil, &resp)
			if err != nil {
				return err
			}
			fmt.Printf("Job started: %s\n", resp.JobID)
			return api.Output(resp)
		},
	}
}
