package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "dataspect",
	Short: "Tabular-dataset analysis backend with notebook, LLM, and AutoML pipelines",
	Long: `Dataspect is an HTTP backend for exploring uploaded tabular datasets.

Each upload becomes a background job that runs a fixed analysis notebook to
produce summary statistics and a histogram, optionally enriched with
LLM-generated narrative insights. Separate pipelines run a time-boxed AutoML
model search and render LaTeX/PDF/HTML reports from the collected artifacts.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.dataspect/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "dataspect home directory (default: ~/.dataspect)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Local .env is loaded before any command so ${ENV_VAR} config
	// references resolve.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
