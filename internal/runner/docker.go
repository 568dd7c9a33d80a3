package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

const (
	// DefaultImage is the runner image carrying papermill and the
	// dataspect_runner tool package.
	DefaultImage = "dataspect/runner:latest"

	// Label marks containers created by this engine.
	Label = "dataspect-runner"
)

// DockerEngine executes the runner inside short-lived containers, one per
// execution. The workspace (dataspect home) is bind-mounted at the same
// path inside the container so host artifact paths are valid on both sides.
type DockerEngine struct {
	cli       *client.Client
	imageName string
	workspace string
	timeout   time.Duration
	labels    map[string]string
	logger    *slog.Logger
}

// DockerConfig holds configuration for the Docker engine.
type DockerConfig struct {
	Image     string
	Workspace string            // Host directory mounted into every container
	Timeout   time.Duration     // per-execution wall-clock cap; zero means unbounded
	Labels    map[string]string // Optional labels (used for test cleanup)
	Logger    *slog.Logger
}

// NewDockerEngine creates a Docker-backed execution engine.
func NewDockerEngine(cfg DockerConfig) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}

	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DockerEngine{
		cli:       cli,
		imageName: cfg.Image,
		workspace: cfg.Workspace,
		timeout:   cfg.Timeout,
		labels:    labels,
		logger:    logger.With("component", "runner", "backend", "docker"),
	}, nil
}

// Close closes the Docker client.
func (e *DockerEngine) Close() error {
	return e.cli.Close()
}

// Name identifies the backend.
func (e *DockerEngine) Name() string { return "docker" }

// ExecuteNotebook runs papermill inside a fresh container.
func (e *DockerEngine) ExecuteNotebook(ctx context.Context, req NotebookRequest) error {
	cmd := append([]string{"papermill"}, notebookArgs(req)...)
	e.logger.Info("executing notebook", "template", req.TemplatePath, "output", req.OutputPath)
	return e.runContainer(ctx, "notebook execution", cmd)
}

// RunTool runs a tool module inside a fresh container.
func (e *DockerEngine) RunTool(ctx context.Context, tool string, args []string) error {
	cmd := append([]string{"python3"}, toolArgs(tool, args)...)
	e.logger.Info("running tool", "tool", tool)
	return e.runContainer(ctx, fmt.Sprintf("tool %s", tool), cmd)
}

// runContainer creates, runs, and removes a one-shot container.
func (e *DockerEngine) runContainer(ctx context.Context, op string, cmd []string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if _, err := e.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	if err := e.ensureImage(ctx); err != nil {
		return err
	}

	containerConfig := &container.Config{
		Image:      e.imageName,
		Cmd:        cmd,
		Labels:     e.labels,
		WorkingDir: e.workspace,
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: e.workspace,
				Target: e.workspace,
			},
		},
	}

	resp, err := e.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		_ = e.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := e.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return &ExecError{Op: op, Err: fmt.Errorf("container wait failed: %w", err)}
		}
		return nil
	case status := <-statusCh:
		if status.StatusCode != 0 {
			logs := e.containerLogs(ctx, resp.ID)
			return &ExecError{
				Op:     op,
				Err:    fmt.Errorf("container exited with status %d", status.StatusCode),
				Output: logs,
			}
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && e.timeout > 0 {
			return &ExecError{
				Op:     op,
				Err:    fmt.Errorf("timed out after %s", e.timeout),
				Output: e.containerLogs(ctx, resp.ID),
			}
		}
		return &ExecError{Op: op, Err: ctx.Err()}
	}
}

// containerLogs fetches stdout+stderr for failure diagnostics.
func (e *DockerEngine) containerLogs(ctx context.Context, containerID string) string {
	logs, err := e.cli.ContainerLogs(context.WithoutCancel(ctx), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "50",
	})
	if err != nil {
		return ""
	}
	defer logs.Close()

	var sb strings.Builder
	_, _ = io.Copy(&sb, logs)
	return sb.String()
}

// ensureImage pulls the runner image if not present.
func (e *DockerEngine) ensureImage(ctx context.Context) error {
	_, err := e.cli.ImageInspect(ctx, e.imageName)
	if err == nil {
		return nil // Image exists
	}

	reader, err := e.cli.ImagePull(ctx, e.imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	// Drain reader to complete pull
	_, err = io.Copy(io.Discard, reader)
	return err
}
