package endpoints

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/runner"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// OutputsEndpoint serves job artifacts from the outputs directory.
type OutputsEndpoint struct{}

var _ api.Endpoint = (*OutputsEndpoint)(nil)

func (e *OutputsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/outputs/{filename}", e.handler
}

func (e *OutputsEndpoint) RequiresInit() bool { return true }

func (e *OutputsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	serveArtifact(w, r, svcctx.HomeFrom(r.Context()).OutputsPath())
}

func (e *OutputsEndpoint) Command(_ func() string) *cobra.Command { return nil }

// StaticEndpoint serves web-facing artifacts (histograms, HTML reports)
// from the static directory.
type StaticEndpoint struct{}

var _ api.Endpoint = (*StaticEndpoint)(nil)

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/static/{filename}", e.handler
}

func (e *StaticEndpoint) RequiresInit() bool { return true }

func (e *StaticEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	serveArtifact(w, r, svcctx.HomeFrom(r.Context()).StaticPath())
}

func (e *StaticEndpoint) Command(_ func() string) *cobra.Command { return nil }

// serveArtifact serves a single file from dir with path containment and a
// bounded existence retry. Artifacts are written by worker goroutines, so a
// poll arriving right after completion may race the filesystem.
func serveArtifact(w http.ResponseWriter, r *http.Request, dir string) {
	name := r.PathValue("filename")
	if !safeName(name) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(dir, name)
	if err := runner.WaitForFile(r.Context(), path); err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	http.ServeFile(w, r, path)
}

// safeName rejects anything that could escape the serving directory.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return name == filepath.Clean(name)
}
