package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// CancelJobEndpoint handles POST /jobs/{job_id}/cancel. Cancellation is
// cooperative: workers check the token between stages, so an in-flight
// external invocation finishes (or is killed by its context) before the job
// settles into failed.
type CancelJobEndpoint struct{}

var _ api.Endpoint = (*CancelJobEndpoint)(nil)

func (e *CancelJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/jobs/{job_id}/cancel", e.handler
}

func (e *CancelJobEndpoint) RequiresInit() bool { return true }

func (e *CancelJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	store := svcctx.StoreFrom(r.Context())
	launcher := svcctx.LauncherFrom(r.Context())

	rec, err := store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if rec.Status.Terminal() {
		writeError(w, http.StatusConflict, "job already finished")
		return
	}

	if !launcher.Cancel(jobID) {
		writeError(w, http.StatusConflict, "job is not running")
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		JobID:   jobID,
		Message: "Cancellation requested",
	})
}

func (e *CancelJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelResponse
			if err := client.Post(cmd.Context(), "/jobs/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
