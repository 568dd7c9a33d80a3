package endpoints

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/insights"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// PendingResponse is returned while a job is still running.
type PendingResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// AnalysisResults is the completed-analysis payload.
type AnalysisResults struct {
	JobID          string            `json:"job_id"`
	Status         string            `json:"status"`
	Summary        map[string]any    `json:"summary"`
	ImageURL       string            `json:"image_url,omitempty"`
	Insights       insights.Document `json:"insights"`
	InsightsSource string            `json:"insights_source,omitempty"`
	InsightsReason string            `json:"insights_reason,omitempty"`
}

// MLResults is the completed-AutoML payload.
type MLResults struct {
	JobID           string         `json:"job_id"`
	Status          string         `json:"status"`
	Metric          string         `json:"metric"`
	Recommendations map[string]any `json:"recommendations"`
}

// ResultsEndpoint handles GET /results/{job_id}. Non-terminal jobs get a
// 202 with status and progress so clients keep polling; failed jobs get
// a 400 carrying the failure reason.
type ResultsEndpoint struct{}

var _ api.Endpoint = (*ResultsEndpoint)(nil)

func (e *ResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/results/{job_id}", e.handler
}

func (e *ResultsEndpoint) RequiresInit() bool { return true }

func (e *ResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	store := svcctx.StoreFrom(r.Context())
	rec, err := store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	if rec.Status != jobstore.StatusCompleted {
		// Failed jobs are terminal: polling will never converge, so
		// they get a 400 instead of a keep-polling 202.
		code := http.StatusAccepted
		if rec.Status.Terminal() {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, PendingResponse{
			JobID:    rec.ID,
			Status:   string(rec.Status),
			Progress: rec.Progress,
			Error:    rec.Error,
		})
		return
	}

	switch rec.Type {
	case jobstore.TypeAutoML:
		recs, err := readJSONFile(rec.OutputFile)
		if err != nil {
			writeError(w, http.StatusNotFound, "recommendations artifact missing")
			return
		}
		writeJSON(w, http.StatusOK, MLResults{
			JobID:           rec.ID,
			Status:          string(rec.Status),
			Metric:          rec.Metric,
			Recommendations: recs,
		})
	default:
		summary, err := readJSONFile(rec.SummaryFile)
		if err != nil {
			writeError(w, http.StatusNotFound, "summary artifact missing")
			return
		}
		resp := AnalysisResults{
			JobID:          rec.ID,
			Status:         string(rec.Status),
			Summary:        summary,
			Insights:       insights.Placeholder(),
			InsightsSource: rec.InsightsSource,
			InsightsReason: rec.InsightsReason,
		}
		if rec.ImageFile != "" {
			resp.ImageURL = "/static/" + base(rec.ImageFile)
		}
		if rec.InsightsFile != "" {
			if data, err := os.ReadFile(rec.InsightsFile); err == nil {
				var doc insights.Document
				if json.Unmarshal(data, &doc) == nil {
					resp.Insights = doc
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func readJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *ResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "results <job_id>",
		Short: "Fetch a completed job's results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/results/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
