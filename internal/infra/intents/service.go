package intents

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"homeassistant-skill/internal/application"
	"homeassistant-skill/internal/domain"
	"homeassistant-skill/internal/infra/dialog"
)

// Service registers the skill's .intent files with the host's padatious
// intent engine.
type Service struct {
	bus      application.MessageBus
	fsys     fs.FS
	skillID  string
	lang     string
	fallback string
	logger   *slog.Logger

	mu         sync.Mutex
	registered map[domain.Intent]bool
}

func NewService(bus application.MessageBus, fsys fs.FS, skillID, lang, fallbackLang string, logger *slog.Logger) *Service {
	return &Service{
		bus:        bus,
		fsys:       fsys,
		skillID:    skillID,
		lang:       strings.ToLower(lang),
		fallback:   strings.ToLower(fallbackLang),
		logger:     logger.With("component", "intents"),
		registered: make(map[domain.Intent]bool),
	}
}

// Samples returns the expanded utterances for intent and the resource file
// they came from.
func (s *Service) Samples(intent domain.Intent) ([]string, string, error) {
	for _, lang := range []string{s.lang, s.fallback} {
		file := path.Join(lang, string(intent))
		raw, err := fs.ReadFile(s.fsys, file)
		if err != nil {
			continue
		}
		var samples []string
		for _, line := range dialog.ReadLines(raw) {
			samples = append(samples, Expand(line)...)
		}
		if len(samples) == 0 {
			return nil, file, fmt.Errorf("intent file %s has no samples", file)
		}
		return samples, file, nil
	}
	return nil, "", fmt.Errorf("intent file for %s not found", intent)
}

func (s *Service) Register(ctx context.Context, intent domain.Intent) error {
	samples, file, err := s.Samples(intent)
	if err != nil {
		return err
	}

	msg := domain.NewMessage(domain.EventRegisterIntent, map[string]any{
		"file_name": file,
		"name":      intent.QualifiedName(s.skillID),
		"lang":      s.lang,
		"samples":   samples,
	})
	if err := s.bus.Emit(ctx, msg); err != nil {
		return fmt.Errorf("registering %s: %w", intent, err)
	}

	s.mu.Lock()
	s.registered[intent] = true
	s.mu.Unlock()
	s.logger.Debug("registered intent", "intent", intent, "samples", len(samples))
	return nil
}

func (s *Service) Detach(ctx context.Context, intent domain.Intent) error {
	msg := domain.NewMessage(domain.EventDetachIntent, map[string]any{
		"intent_name": intent.QualifiedName(s.skillID),
	})
	if err := s.bus.Emit(ctx, msg); err != nil {
		return fmt.Errorf("detaching %s: %w", intent, err)
	}

	s.mu.Lock()
	delete(s.registered, intent)
	s.mu.Unlock()
	s.logger.Debug("detached intent", "intent", intent)
	return nil
}

func (s *Service) Registered() []domain.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Intent, 0, len(s.registered))
	for i := range s.registered {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}
