package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Source supplies the configuration snapshot used by each cycle.
//
// Current never returns nil. Changes delivers new snapshots as they become
// available; a nil channel means the source never changes.
type Source interface {
	Current() *Config
	Changes() <-chan *Config
}

// StaticSource is a [Source] that always returns the same configuration.
type StaticSource struct {
	cfg *Config
}

// NewStaticSource returns a source for a fixed configuration.
func NewStaticSource(cfg *Config) *StaticSource {
	return &StaticSource{cfg: cfg}
}

// Current returns the configuration.
func (s *StaticSource) Current() *Config { return s.cfg }

// Changes returns nil; a static configuration never changes.
func (s *StaticSource) Changes() <-chan *Config { return nil }

// LoadWithEnv loads the file at path and applies PULSEWATCH_* overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FileSource is a [Source] backed by a YAML file that is reloaded whenever
// the file changes on disk.
//
// A reload that fails to parse or validate is logged and the previous
// snapshot stays current.
type FileSource struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Config]
	changes chan *Config
}

// NewFileSource loads path and returns a source for it. Call [FileSource.Watch]
// to start following changes.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg, err := LoadWithEnv(abs)
	if err != nil {
		return nil, err
	}

	s := &FileSource{
		path:    abs,
		logger:  logger,
		changes: make(chan *Config, 1),
	}
	s.current.Store(cfg)
	return s, nil
}

// Current returns the latest valid configuration.
func (s *FileSource) Current() *Config { return s.current.Load() }

// Changes delivers each successfully reloaded configuration. Only the newest
// undelivered snapshot is kept.
func (s *FileSource) Changes() <-chan *Config { return s.changes }

// Watch follows the config file until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file by rename are picked up.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Reload re-reads the file and publishes the result if it is valid.
// It reports whether the snapshot was replaced.
func (s *FileSource) Reload() bool {
	cfg, err := LoadWithEnv(s.path)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration",
			"path", s.path,
			"error", err,
		)
		return false
	}

	s.current.Store(cfg)

	// keep only the newest snapshot for a slow consumer
	select {
	case <-s.changes:
	default:
	}
	s.changes <- cfg

	s.logger.Info("config reloaded", "path", s.path, "sites", len(cfg.Sites))
	return true
}
