package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/automl"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// MLAnalysisEndpoint handles POST /ml-analysis: a multipart training file
// plus a target metric, queued as an AutoML search job.
type MLAnalysisEndpoint struct {
	MaxUploadBytes int64
}

var _ api.Endpoint = (*MLAnalysisEndpoint)(nil)

func (e *MLAnalysisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/ml-analysis", e.handler
}

func (e *MLAnalysisEndpoint) RequiresInit() bool { return true }

func (e *MLAnalysisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r, e.MaxUploadBytes) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	metric := r.FormValue("metric")
	if metric == "" {
		writeError(w, http.StatusBadRequest, "metric is required")
		return
	}
	if !automl.ValidMetric(metric) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid metric. Allowed metrics: %s", strings.Join(automl.Metrics(), ", ")))
		return
	}

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
		Type:     jobstore.TypeAutoML,
		Filename: name,
		Filepath: path,
		Metric:   metric,
	})
	launcher.StartAutoML(jobID)

	writeJSON(w, http.StatusOK, UploadResponse{
		JobID:   jobID,
		Status:  "queued",
		Message: "File uploaded and ML analysis started",
	})
}

func (e *MLAnalysisEndpoint) Command(getServerURL func() string) *cobra.Command {
	var metric string
	cmd := &cobra.Command{
		Use:   "ml-analysis <file>",
		Short: "Upload a training file and start an AutoML search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp UploadResponse
			err := client.PostMultipart(cmd.Context(), "/ml-analysis",
				map[string]string{"file": args[0]},
				map[string]string{"metric": metric}, &resp)
			if err != nil {
				return err
			}
			fmt.Printf("Job started: %s\n", resp.JobID)
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "accuracy", "Target metric: "+strings.Join(automl.Metrics(), ", "))
	return cmd
}
