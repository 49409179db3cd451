package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"homeassistant-skill/internal/domain"
)

// debounce collapses the burst of events editors produce on a single save.
const debounce = 200 * time.Millisecond

// Store reads and writes the host's per-skill settings.json. Keys the skill
// does not know about are kept on save.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger.With("component", "settings")}
}

// DefaultPath is where the host keeps settings for skillID.
func DefaultPath(skillID string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "mycroft", "skills", skillID, "settings.json")
}

func (s *Store) Path() string {
	return s.path
}

// Load returns defaults when the file does not exist.
func (s *Store) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return domain.Settings{}, err
	}
	return decode(raw)
}

func (s *Store) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		s.logger.Warn("overwriting unreadable settings", "path", s.path, "error", err)
		raw = map[string]json.RawMessage{}
	}

	if raw["disable_intents"], err = json.Marshal(settings.DisableIntents); err != nil {
		return fmt.Errorf("encoding disable_intents: %w", err)
	}
	silent := settings.SilentEntities
	if silent == nil {
		silent = []string{}
	}
	if raw["silent_entities"], err = json.Marshal(silent); err != nil {
		return fmt.Errorf("encoding silent_entities: %w", err)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings: %w", err)
	}
	return nil
}

// Watch calls fn with freshly loaded settings whenever the file changes on
// disk. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(domain.Settings)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// The host replaces the file on save, so watch the directory.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	s.logger.Debug("watching settings", "path", s.path)

	name := filepath.Clean(s.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", "error", err)

		case <-fire:
			fire = nil
			settings, err := s.Load()
			if err != nil {
				s.logger.Warn("reloading settings failed", "error", err)
				continue
			}
			s.logger.Debug("settings file changed", "path", s.path)
			fn(settings)
		}
	}
}

func (s *Store) readRaw() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	raw := map[string]json.RawMessage{}
	if len(data) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return raw, nil
}

func decode(raw map[string]json.RawMessage) (domain.Settings, error) {
	var settings domain.Settings
	if v, ok := raw["disable_intents"]; ok {
		if err := json.Unmarshal(v, &settings.DisableIntents); err != nil {
			return domain.Settings{}, fmt.Errorf("parsing disable_intents: %w", err)
		}
	}
	if v, ok := raw["silent_entities"]; ok {
		entities, err := decodeEntities(v)
		if err != nil {
			return domain.Settings{}, err
		}
		settings.SilentEntities = entities
	}
	return settings, nil
}

// decodeEntities accepts a JSON list or a comma separated string, which is
// how the host settings UI stores free-text lists.
func decodeEntities(v json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return list, nil
	}
	var text string
	if err := json.Unmarshal(v, &text); err != nil {
		return nil, fmt.Errorf("parsing silent_entities: %w", err)
	}
	return domain.SplitEntities(text), nil
}
