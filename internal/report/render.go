package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	defaultLatexCmd  = "pdflatex"
	defaultPandocCmd = "pandoc"
	defaultToolWait  = 2 * time.Minute
)

// Renderer drives the external typesetting toolchain.
type Renderer struct {
	latexCmd  string
	pandocCmd string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRenderer creates a renderer. Empty command names fall back to pdflatex
// and pandoc on PATH.
func NewRenderer(latexCmd, pandocCmd string, timeout time.Duration, logger *slog.Logger) *Renderer {
	if latexCmd == "" {
		latexCmd = defaultLatexCmd
	}
	if pandocCmd == "" {
		pandocCmd = defaultPandocCmd
	}
	if timeout <= 0 {
		timeout = defaultToolWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		latexCmd:  latexCmd,
		pandocCmd: pandocCmd,
		timeout:   timeout,
		logger:    logger.With("component", "report"),
	}
}

// Render writes the LaTeX source at texPath, typesets it to pdfPath, and
// converts it to htmlPath. The PDF is structurally validated before the
// paths are handed back.
func (r *Renderer) Render(ctx context.Context, d Data, texPath, pdfPath, htmlPath string) error {
	tex, err := RenderTex(d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(texPath, tex, 0o644); err != nil {
		return fmt.Errorf("failed to write report source: %w", err)
	}

	if err := r.typeset(ctx, texPath, pdfPath); err != nil {
		return err
	}
	if err := api.ValidateFile(pdfPath, nil); err != nil {
		return fmt.Errorf("typeset PDF failed validation: %w", err)
	}
	if err := r.convert(ctx, texPath, htmlPath); err != nil {
		return err
	}
	r.logger.Info("report rendered", "pdf", pdfPath, "html", htmlPath)
	return nil
}

// typeset runs the LaTeX engine into the source's directory, then moves the
// PDF to its final location.
func (r *Renderer) typeset(ctx context.Context, texPath, pdfPath string) error {
	workDir := filepath.Dir(texPath)
	err := r.runTool(ctx, r.latexCmd,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", workDir,
		texPath,
	)
	if err != nil {
		return err
	}

	produced := strings.TrimSuffix(texPath, ".tex") + ".pdf"
	if produced != pdfPath {
		if err := os.Rename(produced, pdfPath); err != nil {
			return fmt.Errorf("failed to move typeset PDF: %w", err)
		}
	}

	// Typesetting byproducts are per-run noise.
	for _, ext := range []string{".aux", ".log", ".out"} {
		os.Remove(strings.TrimSuffix(texPath, ".tex") + ext)
	}
	return nil
}

// convert produces the HTML view with math rendering enabled.
func (r *Renderer) convert(ctx context.Context, texPath, htmlPath string) error {
	return r.runTool(ctx, r.pandocCmd,
		texPath,
		"--from", "latex",
		"--to", "html5",
		"--standalone",
		"--mathjax",
		"--metadata", "pagetitle=Dataset Analysis Report",
		"--output", htmlPath,
	)
}

// runTool executes an external command, propagating captured stderr into the
// error for diagnosability.
func (r *Renderer) runTool(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running tool", "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out after %s", name, r.timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			// LaTeX engines report errors on stdout.
			detail = tail(stdout.String(), 2000)
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, detail)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
