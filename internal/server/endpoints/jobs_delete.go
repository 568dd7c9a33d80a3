package endpoints

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// DeleteResponse reports an explicit job eviction.
type DeleteResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// DeleteJobEndpoint handles DELETE /jobs/{job_id}: evicts the record and
// removes its on-disk artifacts. Running jobs are cancelled first.
type DeleteJobEndpoint struct{}

var _ api.Endpoint = (*DeleteJobEndpoint)(nil)

func (e *DeleteJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/jobs/{job_id}", e.handler
}

func (e *DeleteJobEndpoint) RequiresInit() bool { return true }

func (e *DeleteJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	store := svcctx.StoreFrom(r.Context())
	launcher := svcctx.LauncherFrom(r.Context())
	h := svcctx.HomeFrom(r.Context())
	logger := svcctx.LoggerFrom(r.Context())

	launcher.Cancel(jobID)

	rec, err := store.Delete(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	if rec.Filepath != "" {
		_ = os.Remove(rec.Filepath)
	}
	for _, p := range h.JobArtifacts(jobID) {
		_ = os.Remove(p)
	}
	logger.Info("job deleted", "job_id", jobID, "status", rec.Status)

	writeJSON(w, http.StatusOK, DeleteResponse{
		JobID:   jobID,
		Message: "Job deleted",
	})
}

func (e *DeleteJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job_id>",
		Short: "Delete a job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/jobs/"+args[0])
		},
	}
}
