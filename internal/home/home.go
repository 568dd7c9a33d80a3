package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the dataspect home directory.
	DefaultDirName = ".dataspect"

	// UploadsDirName holds uploaded input files, id-prefixed.
	UploadsDirName = "uploads"

	// OutputsDirName holds per-job artifacts (summaries, notebooks, models).
	OutputsDirName = "outputs"

	// StaticDirName holds web-servable artifacts (histogram images, reports).
	StaticDirName = "static"

	// NotebooksDirName holds the analysis templates executed by the runner.
	NotebooksDirName = "notebooks"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// AnalysisTemplateName is the fixed preprocessing/analysis notebook.
	AnalysisTemplateName = "preprocessing.ipynb"
)

// Dir represents the dataspect home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.dataspect).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// UploadsPath returns the uploads directory.
func (d *Dir) UploadsPath() string {
	return filepath.Join(d.path, UploadsDirName)
}

// OutputsPath returns the outputs directory.
func (d *Dir) OutputsPath() string {
	return filepath.Join(d.path, OutputsDirName)
}

// StaticPath returns the static directory.
func (d *Dir) StaticPath() string {
	return filepath.Join(d.path, StaticDirName)
}

// NotebooksPath returns the notebook templates directory.
func (d *Dir) NotebooksPath() string {
	return filepath.Join(d.path, NotebooksDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// AnalysisTemplate returns the path to the fixed analysis notebook.
func (d *Dir) AnalysisTemplate() string {
	return filepath.Join(d.NotebooksPath(), AnalysisTemplateName)
}

// EnsureExists creates the home directory tree if it doesn't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.UploadsPath(), d.OutputsPath(), d.StaticPath(), d.NotebooksPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// Per-job artifact paths. All artifacts are id-prefixed so that concurrent
// jobs never collide on disk.

// UploadPath returns the path for an uploaded input file.
func (d *Dir) UploadPath(jobID, sanitizedName string) string {
	return filepath.Join(d.UploadsPath(), jobID+"_"+sanitizedName)
}

// SummaryPath returns the path for a job's summary JSON.
func (d *Dir) SummaryPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_summary.json")
}

// HistogramPath returns the path for a job's histogram image.
func (d *Dir) HistogramPath(jobID string) string {
	return filepath.Join(d.StaticPath(), jobID+"_histogram.png")
}

// ExecutedNotebookPath returns the path for a job's executed notebook.
func (d *Dir) ExecutedNotebookPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_output.ipynb")
}

// InsightsPath returns the path for a job's insights JSON.
func (d *Dir) InsightsPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_insights.json")
}

// ModelPath returns the path for a job's serialized model pipeline.
func (d *Dir) ModelPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_model.pkl")
}

// SchemaPath returns the path for a job's saved feature schema.
func (d *Dir) SchemaPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_schema.json")
}

// PreparedPath returns the path for a job's preprocessed training CSV.
func (d *Dir) PreparedPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_prepared.csv")
}

// SearchResultPath returns the path for the raw AutoML search result JSON.
func (d *Dir) SearchResultPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_automl_result.json")
}

// RecommendationsPath returns the path for a job's ML recommendations JSON.
func (d *Dir) RecommendationsPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_ml_recommendations.json")
}

// SubmissionPath returns the path for a job's generated submission CSV.
func (d *Dir) SubmissionPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_submission.csv")
}

// ReportTexPath returns the path for a job's LaTeX report source.
func (d *Dir) ReportTexPath(jobID string) string {
	return filepath.Join(d.OutputsPath(), jobID+"_report.tex")
}

// ReportPDFPath returns the path for a job's typeset report.
func (d *Dir) ReportPDFPath(jobID string) string {
	return filepath.Join(d.StaticPath(), jobID+"_report.pdf")
}

// ReportHTMLPath returns the path for a job's HTML report.
func (d *Dir) ReportHTMLPath(jobID string) string {
	return filepath.Join(d.StaticPath(), jobID+"_report.html")
}

// JobArtifacts returns every artifact path a job may have produced.
// Used by the retention janitor when evicting a job.
func (d *Dir) JobArtifacts(jobID string) []string {
	return []string{
		d.SummaryPath(jobID),
		d.HistogramPath(jobID),
		d.ExecutedNotebookPath(jobID),
		d.InsightsPath(jobID),
		d.ModelPath(jobID),
		d.SchemaPath(jobID),
		d.PreparedPath(jobID),
		d.SearchResultPath(jobID),
		d.RecommendationsPath(jobID),
		d.SubmissionPath(jobID),
		d.ReportTexPath(jobID),
		d.ReportPDFPath(jobID),
		d.ReportHTMLPath(jobID),
	}
}
