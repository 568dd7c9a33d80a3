package config

import "time"

// Config holds dataspect configuration.
// Loaded from: ./config.yaml or ~/.dataspect/config.yaml
type Config struct {
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
	Storage StorageCfg `mapstructure:"storage" yaml:"storage"`
	Runner  RunnerCfg  `mapstructure:"runner" yaml:"runner"`
	LLM     LLMCfg     `mapstructure:"llm" yaml:"llm"`
	AutoML  AutoMLCfg  `mapstructure:"automl" yaml:"automl"`
	Kaggle  KaggleCfg  `mapstructure:"kaggle" yaml:"kaggle"`
	Report  ReportCfg  `mapstructure:"report" yaml:"report"`
	Log     LogCfg     `mapstructure:"log" yaml:"log"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// StorageCfg configures upload limits and artifact retention.
type StorageCfg struct {
	// MaxUploadBytes caps multipart uploads (default 100MB).
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	// RetentionTTL is how long terminal jobs and their artifacts are kept.
	// Zero disables eviction.
	RetentionTTL time.Duration `mapstructure:"retention_ttl" yaml:"retention_ttl"`
	// SweepInterval is how often the janitor scans for expired jobs.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// RunnerCfg configures the external notebook/script execution engine.
type RunnerCfg struct {
	// Mode selects the execution backend: "local" or "docker".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Papermill is the papermill binary for local mode.
	Papermill string `mapstructure:"papermill" yaml:"papermill"`
	// Python is the python interpreter for local-mode scripts.
	Python string `mapstructure:"python" yaml:"python"`
	// Image is the runner container image for docker mode.
	Image string `mapstructure:"image" yaml:"image"`
	// Timeout bounds one notebook/script execution.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMCfg configures the hosted model used for narrative insights.
type LLMCfg struct {
	// APIKey supports ${ENV_VAR} syntax.
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
}

// AutoMLCfg configures the automated model search.
type AutoMLCfg struct {
	// Budget is the wall-clock cap for one search.
	Budget time.Duration `mapstructure:"budget" yaml:"budget"`
}

// KaggleCfg configures the dataset-hosting API client.
type KaggleCfg struct {
	Username string `mapstructure:"username" yaml:"username"`
	// Key supports ${ENV_VAR} syntax.
	Key     string `mapstructure:"key" yaml:"key"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ReportCfg configures the typesetting toolchain.
type ReportCfg struct {
	// LatexCmd is the LaTeX engine (default pdflatex).
	LatexCmd string `mapstructure:"latex_cmd" yaml:"latex_cmd"`
	// PandocCmd is the document converter (default pandoc).
	PandocCmd string `mapstructure:"pandoc_cmd" yaml:"pandoc_cmd"`
	// Timeout bounds one typesetting or conversion pass.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogCfg configures logging output.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // console, json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Storage: StorageCfg{
			MaxUploadBytes: 100 << 20,
			RetentionTTL:   24 * time.Hour,
			SweepInterval:  10 * time.Minute,
		},
		Runner: RunnerCfg{
			Mode:      "local",
			Papermill: "papermill",
			Python:    "python3",
			Image:     "dataspect/runner:latest",
			Timeout:   15 * time.Minute,
		},
		LLM: LLMCfg{
			APIKey:      "${OPENAI_API_KEY}",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.2,
			Timeout:     2 * time.Minute,
			Enabled:     true,
		},
		AutoML: AutoMLCfg{
			Budget: 2 * time.Minute,
		},
		Kaggle: KaggleCfg{
			Key:     "${KAGGLE_KEY}",
			Enabled: false,
		},
		Report: ReportCfg{
			LatexCmd:  "pdflatex",
			PandocCmd: "pandoc",
			Timeout:   2 * time.Minute,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "console",
		},
	}
}
