package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"homeassistant-skill/internal/domain"
)

// Skill translates matched intents into PHAL plugin events and PHAL
// responses back into dialog.
type Skill struct {
	id       string
	lang     string
	bus      MessageBus
	dialogs  DialogRenderer
	intents  IntentService
	registry DeviceRegistry
	settings SettingsStore
	logger   *slog.Logger

	// applyMu serializes intent (de)registration so the host sees
	// transitions in order.
	applyMu sync.Mutex

	// resyncMu guards the coalesced state-update resync.
	resyncMu      sync.Mutex
	resyncing     bool
	resyncPending bool

	mu             sync.Mutex
	current        domain.Settings
	connected      bool
	intentsEnabled bool
}

func NewSkill(
	id string,
	lang string,
	bus MessageBus,
	dialogs DialogRenderer,
	intents IntentService,
	registry DeviceRegistry,
	settings SettingsStore,
	logger *slog.Logger,
) *Skill {
	return &Skill{
		id:        id,
		lang:      lang,
		bus:       bus,
		dialogs:   dialogs,
		intents:   intents,
		registry:  registry,
		settings:  settings,
		logger:    logger.With("skill_id", id),
		connected: true,
	}
}

// Initialize loads settings and subscribes every intent and PHAL response
// handler. Intents are registered with the host in OnConnect.
func (s *Skill) Initialize(ctx context.Context) {
	settings, err := s.settings.Load()
	if err != nil {
		s.logger.Warn("loading settings, using defaults", "error", err)
	}
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	for intent, handler := range s.intentHandlers() {
		s.subscribe(ctx, intent.QualifiedName(s.id), handler)
	}
	for topic, handler := range s.responseHandlers() {
		s.subscribe(ctx, topic, handler)
	}
}

// OnConnect runs after every (re)connection to the bus: the host may have
// restarted and forgotten our intents.
func (s *Skill) OnConnect(ctx context.Context) {
	for _, intent := range domain.ControlIntents {
		if err := s.intents.Register(ctx, intent); err != nil {
			s.logger.Error("registering intent", "intent", intent, "error", err)
		}
	}
	s.applyIntentState(ctx, true)
	s.SyncDevices(ctx)
}

// OnSettingsChanged is called when the host rewrites the settings file.
func (s *Skill) OnSettingsChanged(ctx context.Context, settings domain.Settings) {
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()
	s.logger.Info("settings changed",
		"disable_intents", settings.DisableIntents,
		"silent_entities", len(settings.SilentEntities),
	)
	s.applyIntentState(ctx, false)
}

func (s *Skill) SetConnected(ctx context.Context, connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.mu.Unlock()
	if changed {
		s.logger.Info("PHAL connection state changed", "connected", connected)
	}
	s.applyIntentState(ctx, false)
}

// SyncDevices refreshes the device list from PHAL. A failed sync means the
// plugin is not answering and the Home Assistant intents are withdrawn.
func (s *Skill) SyncDevices(ctx context.Context) {
	err := s.registry.Sync(ctx)
	if err != nil {
		s.logger.Warn("device list sync failed", "error", err)
	}
	s.SetConnected(ctx, err == nil)
}

// RequestResync schedules SyncDevices off the calling goroutine. Requests
// arriving while a sync runs collapse into one follow-up sync.
func (s *Skill) RequestResync(ctx context.Context) {
	s.resyncMu.Lock()
	if s.resyncing {
		s.resyncPending = true
		s.resyncMu.Unlock()
		return
	}
	s.resyncing = true
	s.resyncMu.Unlock()

	go s.resyncLoop(ctx)
}

func (s *Skill) resyncLoop(ctx context.Context) {
	for {
		if ctx.Err() == nil {
			s.SyncDevices(ctx)
		}

		s.resyncMu.Lock()
		if !s.resyncPending || ctx.Err() != nil {
			s.resyncing = false
			s.resyncPending = false
			s.resyncMu.Unlock()
			return
		}
		s.resyncPending = false
		s.resyncMu.Unlock()
	}
}

func (s *Skill) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Skill) IntentsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intentsEnabled
}

func (s *Skill) DeviceCount() int {
	return len(s.registry.Devices())
}

// applyIntentState registers the connected intents when the skill is
// connected and not disabled by the user, and detaches them otherwise. With
// force the host is told again even if nothing changed locally.
func (s *Skill) applyIntentState(ctx context.Context, force bool) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	want := s.connected && !s.current.DisableIntents
	if want == s.intentsEnabled && !force {
		s.mu.Unlock()
		return
	}
	s.intentsEnabled = want
	s.mu.Unlock()

	if want {
		s.enableIntents(ctx)
	} else {
		s.disableIntents(ctx)
	}
}

func (s *Skill) enableIntents(ctx context.Context) {
	for _, intent := range domain.ConnectedIntents {
		if err := s.intents.Register(ctx, intent); err != nil {
			s.logger.Error("registering intent", "intent", intent, "error", err)
		}
	}
	s.logger.Info("home assistant intents enabled")
}

func (s *Skill) disableIntents(ctx context.Context) {
	for _, intent := range domain.ConnectedIntents {
		if err := s.intents.Detach(ctx, intent); err != nil {
			s.logger.Error("detaching intent", "intent", intent, "error", err)
		}
	}
	s.logger.Info("home assistant intents disabled")
}

func (s *Skill) subscribe(ctx context.Context, topic string, handler func(context.Context, domain.Message)) {
	s.bus.On(topic, func(msg domain.Message) {
		s.logger.Debug("handling message", "type", msg.Type, "data", msg.Data)
		handler(ctx, msg)
	})
}

func (s *Skill) emit(ctx context.Context, msg domain.Message) {
	if err := s.bus.Emit(ctx, msg); err != nil {
		s.logger.Error("emitting message", "type", msg.Type, "error", err)
	}
}

// speakDialog renders a dialog template and asks the host to speak it in
// the session the source message came from.
func (s *Skill) speakDialog(ctx context.Context, src domain.Message, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	lang := s.langFor(src)
	utterance := s.dialogs.Render(lang, name, data)

	msg := src.Forward(domain.EventSpeak, map[string]any{
		"utterance":       utterance,
		"expect_response": false,
		"lang":            lang,
		"meta": map[string]any{
			"dialog": name,
			"data":   data,
			"skill":  s.id,
		},
	})
	msg.Context["skill_id"] = s.id
	s.emit(ctx, msg)
}

func (s *Skill) langFor(msg domain.Message) string {
	if lang := msg.String("lang"); lang != "" {
		return lang
	}
	if lang, ok := msg.Context["lang"].(string); ok && lang != "" {
		return lang
	}
	return s.lang
}

func (s *Skill) isSilent(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.IsSilent(device)
}

func (s *Skill) updateSettings(fn func(*domain.Settings)) error {
	s.mu.Lock()
	fn(&s.current)
	updated := s.current
	s.mu.Unlock()

	if err := s.settings.Save(updated); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
