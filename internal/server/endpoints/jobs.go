package endpoints

import (
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// JobListResponse is the job listing payload.
type JobListResponse struct {
	Jobs  []jobstore.Record `json:"jobs"`
	Total int               `json:"total"`
}

// ListJobsEndpoint handles GET /jobs.
type ListJobsEndpoint struct{}

var _ api.Endpoint = (*ListJobsEndpoint)(nil)

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.StoreFrom(r.Context())

	jobs := store.List()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	for i := range jobs {
		jobs[i] = baseNames(jobs[i])
	}

	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs, Total: len(jobs)})
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobListResponse
			if err := client.Get(cmd.Context(), "/jobs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
