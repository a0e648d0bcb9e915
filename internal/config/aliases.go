package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// aliasFile is the on-disk shape of MODEL_ALIAS_FILE:
//
//	aliases:
//	  gpt-oss: openai/gpt-oss-120b
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadModelAliases parses a YAML alias file.
func LoadModelAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}
	if f.Aliases == nil {
		f.Aliases = map[string]string{}
	}
	return f.Aliases, nil
}

// AliasFile keeps the latest parsed contents of an alias file and reloads it
// when the file changes.
type AliasFile struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	aliases map[string]string
}

// NewAliasFile loads path once. An empty path yields an always-empty AliasFile.
func NewAliasFile(path string, logger *slog.Logger) (*AliasFile, error) {
	if logger == nil {
		logger = slog.Default()
	}
	af := &AliasFile{path: path, logger: logger, aliases: map[string]string{}}
	if path == "" {
		return af, nil
	}
	if err := af.reload(); err != nil {
		return nil, err
	}
	return af, nil
}

// Aliases returns a copy of the current alias map.
func (af *AliasFile) Aliases() map[string]string {
	af.mu.RLock()
	defer af.mu.RUnlock()

	out := make(map[string]string, len(af.aliases))
	for k, v := range af.aliases {
		out[k] = v
	}
	return out
}

func (af *AliasFile) reload() error {
	aliases, err := LoadModelAliases(af.path)
	if err != nil {
		return err
	}
	af.mu.Lock()
	af.aliases = aliases
	af.mu.Unlock()
	return nil
}

// Watch reloads the file on write or create events until ctx is cancelled.
// The parent directory is watched so editors that replace the file are handled.
func (af *AliasFile) Watch(ctx context.Context) error {
	if af.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(af.path)); err != nil {
		return fmt.Errorf("failed to watch alias file: %w", err)
	}

	target := filepath.Clean(af.path)
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				if err := af.reload(); err != nil {
					af.logger.Error("Model alias reload failed", "path", af.path, "error", err)
					return
				}
				af.logger.Info("Model aliases reloaded", "path", af.path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			af.logger.Error("Alias file watcher error", "error", err)
		}
	}
}
