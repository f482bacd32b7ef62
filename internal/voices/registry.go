// Package voices maps voice ids to Piper ONNX model files and keeps the
// mapping fresh as models are added to or removed from the voices directory.
package voices

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/sahilm/fuzzy"

	"piperd/internal/tts"
)

// Built-in voice aliases. These short ids map to the models the Docker image
// downloads by default; any other *.onnx file in the directory is addressable
// by its file stem.
var aliases = map[string]string{
	"en_us":        "en_US-ryan-high.onnx",
	"en_gb":        "en_GB-cori-high.onnx",
	"en_us_female": "en_US-lessac-high.onnx",
}

// Voice describes one synthesizable voice.
type Voice struct {
	ID        string `json:"id"`
	ModelFile string `json:"model_file"`
	SizeBytes int64  `json:"size_bytes"`
}

// Model is a resolved voice: paths to the ONNX model and its sidecar config.
type Model struct {
	ModelPath  string
	ConfigPath string
}

// Registry resolves voice ids to model files under a single directory.
type Registry struct {
	dir string

	mu     sync.RWMutex
	models map[string]string // voice id -> model filename

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewRegistry creates a registry over dir and performs an initial scan.
// The directory is created if it does not exist.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create voices directory: %w", err)
	}

	r := &Registry{
		dir:    dir,
		models: make(map[string]string),
		done:   make(chan struct{}),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Watch starts an fsnotify watcher that rescans the directory whenever model
// files change. Safe to skip in tests; Close is still required afterwards.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create voices watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("unable to watch voices directory: %w", err)
	}
	r.watcher = watcher

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".onnx") {
					continue
				}
				if err := r.Reload(); err != nil {
					log.Warn("Voice registry reload failed", "err", err)
					continue
				}
				log.Debug("Voice registry reloaded", "event", event.Op.String(), "file", filepath.Base(event.Name))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Voices watcher error", "err", err)
			case <-r.done:
				return
			}
		}
	}()

	return nil
}

// Reload rescans the voices directory.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("unable to read voices directory: %w", err)
	}

	models := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".onnx") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		models[stem] = entry.Name()
	}

	// Aliases only resolve when their model is actually present.
	for alias, file := range aliases {
		if _, err := os.Stat(filepath.Join(r.dir, file)); err == nil {
			models[alias] = file
		}
	}

	r.mu.Lock()
	r.models = models
	r.mu.Unlock()

	return nil
}

// Resolve returns the model and config paths for a voice id. Both files must
// exist; a registered voice with a missing sidecar config is as unusable as
// an unknown one.
func (r *Registry) Resolve(id string) (Model, error) {
	r.mu.RLock()
	file, ok := r.models[id]
	r.mu.RUnlock()

	if !ok {
		msg := fmt.Sprintf("%v: %q. Available voices: %s", tts.ErrUnknownVoice, id, strings.Join(r.IDs(), ", "))
		if suggestion := r.Suggest(id); suggestion != "" {
			msg += fmt.Sprintf(". Did you mean %q?", suggestion)
		}
		return Model{}, tts.NewSynthesisError(tts.ErrorCodeInvalidInput, msg, tts.ErrUnknownVoice)
	}

	modelPath := filepath.Join(r.dir, file)
	if _, err := os.Stat(modelPath); err != nil {
		return Model{}, tts.NewSynthesisError(tts.ErrorCodeInvalidInput,
			fmt.Sprintf("model file for voice %q is missing: %s", id, modelPath), tts.ErrModelNotFound)
	}

	configPath := modelPath + ".json"
	if _, err := os.Stat(configPath); err != nil {
		return Model{}, tts.NewSynthesisError(tts.ErrorCodeInvalidInput,
			fmt.Sprintf("config file for voice %q is missing: %s", id, configPath), tts.ErrModelNotFound)
	}

	return Model{ModelPath: modelPath, ConfigPath: configPath}, nil
}

// IDs returns all known voice ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all known voices with their model file sizes.
func (r *Registry) List() []Voice {
	r.mu.RLock()
	models := make(map[string]string, len(r.models))
	for id, file := range r.models {
		models[id] = file
	}
	r.mu.RUnlock()

	voices := make([]Voice, 0, len(models))
	for id, file := range models {
		v := Voice{ID: id, ModelFile: file}
		if info, err := os.Stat(filepath.Join(r.dir, file)); err == nil {
			v.SizeBytes = info.Size()
		}
		voices = append(voices, v)
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })
	return voices
}

// Suggest returns the closest known voice id for a misspelled one, or ""
// when nothing matches.
func (r *Registry) Suggest(id string) string {
	matches := fuzzy.Find(id, r.IDs())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// Count returns the number of resolvable voices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Dir returns the voices directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Close stops the watcher goroutine.
func (r *Registry) Close() error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	var err error
	if r.watcher != nil {
		err = r.watcher.Close()
	}
	r.wg.Wait()
	return err
}
