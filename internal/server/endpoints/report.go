package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/insights"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/report"
	"github.com/dataspect/dataspect/internal/svcctx"
)

var (
	errArtifactMissing = errors.New("report artifact missing")
	errJobNotReady     = errors.New("job is not a completed analysis job")
)

// ReportEndpoint handles GET /report/{job_id}: fills the LaTeX template
// from the job's artifacts, typesets a PDF, converts it to HTML, and
// returns the HTML view.
type ReportEndpoint struct{}

var _ api.Endpoint = (*ReportEndpoint)(nil)

func (e *ReportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/report/{job_id}", e.handler
}

func (e *ReportEndpoint) RequiresInit() bool { return true }

func (e *ReportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	store := svcctx.StoreFrom(r.Context())
	rec, err := store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	htmlPath, err := renderJobReport(r.Context(), rec)
	if err != nil {
		writeRenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, htmlPath)
}

// renderJobReport drives the full template → PDF → HTML chain for a
// completed analysis job and records the PDF path on the record.
func renderJobReport(ctx context.Context, rec jobstore.Record) (string, error) {
	if rec.Type != jobstore.TypeAnalysis || rec.Status != jobstore.StatusCompleted {
		return "", fmt.Errorf("job %s: %w", rec.ID, errJobNotReady)
	}

	h := svcctx.HomeFrom(ctx)
	renderer := svcctx.RendererFrom(ctx)
	store := svcctx.StoreFrom(ctx)
	logger := svcctx.LoggerFrom(ctx)

	summary, err := readJSONFile(rec.SummaryFile)
	if err != nil {
		return "", errArtifactMissing
	}

	doc := insights.Placeholder()
	if insightsMap, err := readJSONFile(rec.InsightsFile); err == nil {
		doc = documentFrom(insightsMap)
	}

	histogram := ""
	if rec.ImageFile != "" {
		if _, err := os.Stat(rec.ImageFile); err == nil {
			histogram = rec.ImageFile
		}
	}

	generated := time.Now().UTC().Format("2006-01-02 15:04 UTC")
	d := report.BuildData(rec.ID, rec.Filename, generated, summary, doc, histogram, logger)

	pdfPath := h.ReportPDFPath(rec.ID)
	htmlPath := h.ReportHTMLPath(rec.ID)
	if err := renderer.Render(ctx, d, h.ReportTexPath(rec.ID), pdfPath, htmlPath); err != nil {
		return "", err
	}

	store.Apply(rec.ID, jobstore.Update{PDFFile: &pdfPath})
	return htmlPath, nil
}

// documentFrom rebuilds an insights document from its decoded JSON form,
// tolerating missing or mistyped fields.
func documentFrom(m map[string]any) insights.Document {
	doc := insights.Placeholder()
	if s, ok := m["summary"].(string); ok {
		doc.Summary = s
	}
	if s, ok := m["correlation_insights"].(string); ok {
		doc.CorrelationInsights = s
	}
	if vs, ok := m["key_columns"].([]any); ok {
		doc.KeyColumns = stringsOf(vs)
	}
	if vs, ok := m["recommendations"].([]any); ok {
		doc.Recommendations = stringsOf(vs)
	}
	return doc
}

func stringsOf(vs []any) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func writeRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errJobNotReady):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errArtifactMissing):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("report rendering failed: %v", err))
	}
}

func (e *ReportEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
