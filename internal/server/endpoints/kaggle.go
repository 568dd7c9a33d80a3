package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/kaggle"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// kaggleClient pulls the dataset-search client from the request context,
// writing a 503 when the integration is disabled by config.
func kaggleClient(w http.ResponseWriter, r *http.Request) *kaggle.Client {
	client := svcctx.KaggleFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset search is not configured")
	}
	return client
}

func datasetRef(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("dataset")
}

// KaggleSearchEndpoint handles GET /api/search.
type KaggleSearchEndpoint struct{}

var _ api.Endpoint = (*KaggleSearchEndpoint)(nil)

func (e *KaggleSearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/search", e.handler
}

func (e *KaggleSearchEndpoint) RequiresInit() bool { return false }

func (e *KaggleSearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	client := kaggleClient(w, r)
	if client == nil {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = p
	}
	sortBy := r.URL.Query().Get("sort_by")

	result, err := client.Search(r.Context(), query, page, sortBy)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("dataset search failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *KaggleSearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var page int
	var sortBy string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search hosted datasets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := fmt.Sprintf("/api/search?q=%s&page=%d&sort_by=%s", args[0], page, sortBy)
			var resp kaggle.SearchResult
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().StringVar(&sortBy, "sort-by", "hottest", "Sort order")
	return cmd
}

// KaggleFilesEndpoint handles GET /api/dataset/{owner}/{dataset}/files.
type KaggleFilesEndpoint struct{}

var _ api.Endpoint = (*KaggleFilesEndpoint)(nil)

func (e *KaggleFilesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/dataset/{owner}/{dataset}/files", e.handler
}

func (e *KaggleFilesEndpoint) RequiresInit() bool { return false }

func (e *KaggleFilesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	client := kaggleClient(w, r)
	if client == nil {
		return
	}

	files, err := client.Files(r.Context(), datasetRef(r))
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to list dataset files: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset_ref": datasetRef(r),
		"files":       files,
	})
}

func (e *KaggleFilesEndpoint) Command(_ func() string) *cobra.Command { return nil }

// KaggleDownloadEndpoint handles GET /api/dataset/{owner}/{dataset}/download,
// streaming the dataset archive straight through to the client.
type KaggleDownloadEndpoint struct{}

var _ api.Endpoint = (*KaggleDownloadEndpoint)(nil)

func (e *KaggleDownloadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/dataset/{owner}/{dataset}/download", e.handler
}

func (e *KaggleDownloadEndpoint) RequiresInit() bool { return false }

func (e *KaggleDownloadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	client := kaggleClient(w, r)
	if client == nil {
		return
	}

	name := r.PathValue("owner") + "_" + r.PathValue("dataset") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if _, err := client.Download(r.Context(), datasetRef(r), w); err != nil {
		// Headers are already out; the truncated stream is all we can
		// signal. Log and drop.
		svcctx.LoggerFrom(r.Context()).Error("dataset download failed",
			"ref", datasetRef(r), "error", err)
	}
}

func (e *KaggleDownloadEndpoint) Command(_ func() string) *cobra.Command { return nil }

// KagglePreviewEndpoint handles GET /api/dataset/{owner}/{dataset}/preview.
type KagglePreviewEndpoint struct{}

var _ api.Endpoint = (*KagglePreviewEndpoint)(nil)

func (e *KagglePreviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/dataset/{owner}/{dataset}/preview", e.handler
}

func (e *KagglePreviewEndpoint) RequiresInit() bool { return false }

func (e *KagglePreviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	client := kaggleClient(w, r)
	if client == nil {
		return
	}

	rows := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("rows")); err == nil {
		rows = n
	}
	fileName := r.URL.Query().Get("file")

	result, err := client.Preview(r.Context(), datasetRef(r), fileName, rows)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("dataset preview failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *KagglePreviewEndpoint) Command(_ func() string) *cobra.Command { return nil }
