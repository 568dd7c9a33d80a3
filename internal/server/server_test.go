package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dataspect/dataspect/internal/config"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/testutil"
)

func newTestServer(t *testing.T, port string) *Server {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	srv, err := New(Config{
		Host: "127.0.0.1",
		Port: port,
		Home: h,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestServer_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	srv := newTestServer(t, port)

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)

	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)
	if err := testutil.WaitForHealthy(baseURL, 10*time.Second); err != nil {
		serverCancel()
		t.Fatalf("server did not start: %v", err)
	}

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health struct {
			Status    string `json:"status"`
			TotalJobs int    `json:"total_jobs"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "healthy" {
			t.Errorf("health.Status = %q, want %q", health.Status, "healthy")
		}
	})

	t.Run("unknown_job_is_404", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/job-status/does-not-exist")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	t.Run("double_start_fails", func(t *testing.T) {
		if err := srv.Start(ctx); err == nil {
			t.Error("second Start() should return error")
		}
	})

	serverCancel()

	if err := testutil.WaitForShutdown(serverErr, 10*time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown, want false")
	}
}

func TestServer_HandlerServesWithoutNetwork(t *testing.T) {
	srv := newTestServer(t, "18091")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestBuildEngine(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	engine, err := buildEngine(config.RunnerCfg{Mode: "local"}, h, nil)
	if err != nil {
		t.Fatalf("buildEngine(local) error = %v", err)
	}
	if engine.Name() != "local" {
		t.Errorf("engine.Name() = %q, want %q", engine.Name(), "local")
	}

	if _, err := buildEngine(config.RunnerCfg{Mode: "floppy"}, h, nil); err == nil {
		t.Error("buildEngine with unknown mode should return error")
	}
}
