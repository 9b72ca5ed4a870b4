// Package file provides file-based configuration with hot-reload.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Provider implements ports.ConfigProvider on top of a YAML file.
// Edits to the file are picked up and handed to the Watch callback.
type Provider struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  *slog.Logger
	mu      sync.RWMutex
	current *config.Config
}

// NewProvider creates a file-based config provider.
func NewProvider(path string, logger *slog.Logger) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		path:   path,
		logger: logger,
	}, nil
}

// Load reads the configuration file.
func (p *Provider) Load(ctx context.Context) (*config.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := config.Load(p.path)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", p.path, err)
	}

	p.current = cfg
	p.logger.Info("config loaded", slog.String("path", p.path))

	return cfg, nil
}

// Current returns the most recently loaded configuration.
func (p *Provider) Current() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// DebounceInterval is how long the file must stay quiet before a reload.
// Editors often write a file in several steps.
const DebounceInterval = 100 * time.Millisecond

// Watch calls onChange with the reloaded configuration whenever the file is
// written or replaced. Invalid edits are logged and skipped. Watching stops
// when ctx is done or Close is called.
func (p *Provider) Watch(ctx context.Context, onChange func(*config.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// The directory is watched: a rename-replace drops a watch on the file.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", p.path, err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.watcher = watcher
	p.done = done
	p.mu.Unlock()

	p.logger.Info("watching config file", slog.String("path", p.path))
	go func() {
		defer close(done)
		p.run(ctx, watcher, onChange)
	}()
	return nil
}

func (p *Provider) run(ctx context.Context, watcher *fsnotify.Watcher, onChange func(*config.Config)) {
	defer watcher.Close()

	target := filepath.Clean(p.path)
	debounce := time.NewTimer(DebounceInterval)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("config watch stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce.Reset(DebounceInterval)
			}

		case <-debounce.C:
			if cfg, ok := p.reload(); ok {
				onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watch error", slog.String("error", err.Error()))
		}
	}
}

func (p *Provider) reload() (*config.Config, bool) {
	cfg, err := config.Load(p.path)
	if err != nil {
		p.logger.Error("config reload rejected",
			slog.String("path", p.path),
			slog.String("error", err.Error()))
		return nil, false
	}

	p.mu.Lock()
	p.current = cfg
	p.mu.Unlock()

	p.logger.Info("config reloaded", slog.String("path", p.path))
	return cfg, true
}

// Close stops watching the config file. It returns once the watch loop has
// exited, so onChange is never called after Close.
func (p *Provider) Close() error {
	p.mu.Lock()
	watcher, done := p.watcher, p.done
	p.watcher, p.done = nil, nil
	p.mu.Unlock()

	if watcher == nil {
		return nil
	}

	// The loop takes p.mu on reload, so wait without holding it.
	err := watcher.Close()
	<-done
	return err
}

var _ ports.ConfigProvider = (*Provider)(nil)
