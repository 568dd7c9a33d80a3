package endpoints

import (
	"fmt"
	"net/http"
	"os"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// DownloadPDFEndpoint handles GET /download-pdf/{job_id}. The typeset report
// is rendered on demand if a previous /report call hasn't produced it yet,
// and validated before it leaves the server.
type DownloadPDFEndpoint struct{}

var _ api.Endpoint = (*DownloadPDFEndpoint)(nil)

func (e *DownloadPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/download-pdf/{job_id}", e.handler
}

func (e *DownloadPDFEndpoint) RequiresInit() bool { return true }

func (e *DownloadPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	store := svcctx.StoreFrom(r.Context())
	h := svcctx.HomeFrom(r.Context())

	rec, err := store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	pdfPath := h.ReportPDFPath(jobID)
	if _, err := os.Stat(pdfPath); err != nil {
		if _, err := renderJobReport(r.Context(), rec); err != nil {
			writeRenderError(w, err)
			return
		}
	}

	if err := pdfapi.ValidateFile(pdfPath, nil); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("report PDF failed validation: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+"_report.pdf"))
	http.ServeFile(w, r, pdfPath)
}

func (e *DownloadPDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download-pdf <job_id>",
		Short: "Download a job's typeset PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + "_report.pdf"
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			if err := client.Download(cmd.Context(), "/download-pdf/"+args[0], f); err != nil {
				return err
			}
			fmt.Printf("Saved report to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default <job_id>_report.pdf)")
	return cmd
}
