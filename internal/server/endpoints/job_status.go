package endpoints

import (
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// JobStatusEndpoint handles GET /job-status/{job_id}. The record is returned
// as-is minus internal filesystem paths (stripped at the serialization
// layer).
type JobStatusEndpoint struct{}

var _ api.Endpoint = (*JobStatusEndpoint)(nil)

func (e *JobStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/job-status/{job_id}", e.handler
}

func (e *JobStatusEndpoint) RequiresInit() bool { return true }

func (e *JobStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	store := svcctx.StoreFrom(r.Context())
	rec, err := store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	writeJSON(w, http.StatusOK, baseNames(rec))
}

// baseNames strips directory components from artifact paths so the response
// never leaks server filesystem layout.
func baseNames(rec jobstore.Record) jobstore.Record {
	rec.SummaryFile = base(rec.SummaryFile)
	rec.ImageFile = base(rec.ImageFile)
	rec.NotebookFile = base(rec.NotebookFile)
	rec.InsightsFile = base(rec.InsightsFile)
	rec.OutputFile = base(rec.OutputFile)
	rec.ModelFile = base(rec.ModelFile)
	rec.PDFFile = base(rec.PDFFile)
	return rec
}

func base(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}

func (e *JobStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "job-status <job_id>",
		Short: "Poll a job's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobstore.Record
			if err := client.Get(cmd.Context(), "/job-status/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
