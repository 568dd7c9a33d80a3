// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/dataspect/dataspect/internal/automl"
	"github.com/dataspect/dataspect/internal/config"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/kaggle"
	"github.com/dataspect/dataspect/internal/pipeline"
	"github.com/dataspect/dataspect/internal/report"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store    *jobstore.Store
	Launcher *pipeline.Launcher
	AutoML   *automl.Worker
	Kaggle   *kaggle.Client
	Renderer *report.Renderer
	Config   *config.Manager
	Logger   *slog.Logger
	Home     *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the job store from context.
func StoreFrom(ctx context.Context) *jobstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// LauncherFrom extracts the pipeline launcher from context.
func LauncherFrom(ctx context.Context) *pipeline.Launcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Launcher
	}
	return nil
}

// AutoMLFrom extracts the model-search worker from context.
func AutoMLFrom(ctx context.Context) *automl.Worker {
	if s := ServicesFrom(ctx); s != nil {
		return s.AutoML
	}
	return nil
}

// KaggleFrom extracts the Kaggle client from context. Nil when the Kaggle
// integration is disabled.
func KaggleFrom(ctx context.Context) *kaggle.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Kaggle
	}
	return nil
}

// RendererFrom extracts the report renderer from context.
func RendererFrom(ctx context.Context) *report.Renderer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Renderer
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
// Returns slog.Default() if not present.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
