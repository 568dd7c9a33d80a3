package endpoints

import (
	"github.com/dataspect/dataspect/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// MaxUploadBytes caps multipart uploads (default 100MB).
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}

	return []api.Endpoint{
		// Health
		&HealthEndpoint{},

		// Analysis submission
		&RunAnalysisEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},
		&MLAnalysisEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},
		&GenerateSubmissionEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},

		// Job tracking
		&JobStatusEndpoint{},
		&ResultsEndpoint{},
		&ListJobsEndpoint{},
		&CancelJobEndpoint{},
		&DeleteJobEndpoint{},

		// Reports
		&ReportEndpoint{},
		&DownloadPDFEndpoint{},

		// Artifact file serving
		&OutputsEndpoint{},
		&StaticEndpoint{},

		// Dataset search
		&KaggleSearchEndpoint{},
		&KaggleFilesEndpoint{},
		&KaggleDownloadEndpoint{},
		&KagglePreviewEndpoint{},
	}
}
