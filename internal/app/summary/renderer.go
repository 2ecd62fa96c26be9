// Package summary renders the cached summary image published after each
// refresh.
package summary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/R3E-Network/country_service/internal/app/metrics"
	"github.com/R3E-Network/country_service/pkg/logger"
)

const (
	ImageFile    = "summary.png"
	FallbackFile = "summary.txt"

	// FallbackText is written when rendering fails for any reason.
	FallbackText = "Summary image generation failed. Please try refreshing the data."

	probeFile = ".write-test"
)

// ErrNoImage is returned by Image when no summary has been rendered.
var ErrNoImage = errors.New("summary image not found")

// Renderer builds summary.png from the store contents.
type Renderer struct {
	dir        string
	store      Store
	rasterizer Rasterizer
	timeout    time.Duration
	log        *logger.Logger
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithTimeout bounds a single rasterization.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the renderer logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRenderer creates a renderer writing into dir.
func NewRenderer(dir string, store Store, rasterizer Rasterizer, opts ...Option) *Renderer {
	r := &Renderer{
		dir:        dir,
		store:      store,
		rasterizer: rasterizer,
		timeout:    30 * time.Second,
		log:        logger.NewDefault("summary"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ImagePath returns the location of the published image.
func (r *Renderer) ImagePath() string {
	return filepath.Join(r.dir, ImageFile)
}

// Image returns the bytes of the last published image.
func (r *Renderer) Image() ([]byte, error) {
	data, err := os.ReadFile(r.ImagePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoImage
	}
	if err != nil {
		return nil, fmt.Errorf("read summary image: %w", err)
	}
	return data, nil
}

// Publish renders and stores the summary image. Failures are logged and
// replaced by the text fallback; nothing is returned to the caller.
func (r *Renderer) Publish(ctx context.Context) {
	start := time.Now()
	err := r.render(ctx)
	metrics.RecordSummaryRender(err == nil, time.Since(start))

	if err == nil {
		if rmErr := os.Remove(filepath.Join(r.dir, FallbackFile)); rmErr != nil && !os.IsNotExist(rmErr) {
			r.log.WithError(rmErr).Warn("stale summary fallback not removed")
		}
		r.log.WithField("path", r.ImagePath()).Info("summary image generated")
		return
	}

	r.log.WithError(err).Warn("summary image generation failed")
	if fbErr := r.writeFallback(); fbErr != nil {
		r.log.WithError(fbErr).Error("summary fallback write failed")
	}
}

func (r *Renderer) render(ctx context.Context) error {
	if err := r.prepareDir(); err != nil {
		return err
	}

	snap, err := LoadSnapshot(ctx, r.store)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	html, err := RenderHTML(snap)
	if err != nil {
		return err
	}

	if r.rasterizer == nil {
		return errors.New("no rasterizer configured")
	}
	renderCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	png, err := r.rasterizer.Rasterize(renderCtx, html)
	if err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	if len(png) == 0 {
		return errors.New("rasterizer produced no output")
	}

	return writeFileAtomic(r.ImagePath(), png)
}

// prepareDir creates the cache directory and proves it is writable.
func (r *Renderer) prepareDir() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	probe := filepath.Join(r.dir, probeFile)
	if err := os.WriteFile(probe, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("cache directory not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("remove write probe: %w", err)
	}
	return nil
}

func (r *Renderer) writeFallback() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, FallbackFile), []byte(FallbackText), 0o644)
}

// writeFileAtomic replaces path so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*.png")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish image: %w", err)
	}
	return nil
}
