package main

import (
	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/server/endpoints"
)

var serverURL string

func getServerURL() string {
	return serverURL
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		registry.Register(ep)
	}

	apiCmd := registry.BuildCommands(getServerURL)
	apiCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "URL of the dataspect server")

	rootCmd.AddCommand(apiCmd)
}
