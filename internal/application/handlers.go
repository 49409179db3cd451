package application

import (
	"context"

	"homeassistant-skill/internal/domain"
)

type handlerFunc = func(context.Context, domain.Message)

func (s *Skill) intentHandlers() map[domain.Intent]handlerFunc {
	return map[domain.Intent]handlerFunc{
		domain.IntentSensor:             s.deviceIntent(domain.EventGetDevice),
		domain.IntentTurnOn:             s.deviceIntent(domain.EventTurnOn),
		domain.IntentTurnOff:            s.deviceIntent(domain.EventTurnOff),
		domain.IntentStop:               s.deviceIntent(domain.EventTurnOff),
		domain.IntentGetBrightness:      s.deviceIntent(domain.EventGetBrightness),
		domain.IntentIncreaseBrightness: s.deviceIntent(domain.EventIncreaseBrightness),
		domain.IntentDecreaseBrightness: s.deviceIntent(domain.EventDecreaseBrightness),
		domain.IntentGetColor:           s.deviceIntent(domain.EventGetColor),
		domain.IntentSetBrightness:      s.handleSetBrightnessIntent,
		domain.IntentSetColor:           s.handleSetColorIntent,
		domain.IntentOpenDashboard:      s.handleOpenDashboardIntent,
		domain.IntentCloseDashboard:     s.handleCloseDashboardIntent,
		domain.IntentShowAreaDashboard:  s.handleShowAreaDashboardIntent,
		domain.IntentAssist:             s.handleAssistIntent,
		domain.IntentRebuildDeviceList:  s.handleRebuildDeviceListIntent,
		domain.IntentEnable:             s.handleEnableIntent,
		domain.IntentDisable:            s.handleDisableIntent,
	}
}

// deviceIntent builds the common handler: read the spoken entity, forward it
// to PHAL under topic and acknowledge.
func (s *Skill) deviceIntent(topic string) handlerFunc {
	return func(ctx context.Context, msg domain.Message) {
		s.logger.Info("intent matched", "type", msg.Type, "data", msg.Data)
		payload, ok := s.devicePayload(msg)
		if !ok {
			s.speakDialog(ctx, msg, "no.parsed.device", nil)
			return
		}
		s.emit(ctx, msg.Forward(topic, payload))
		s.speakDialog(ctx, msg, "acknowledge", nil)
	}
}

// devicePayload resolves the spoken entity against the known devices. When
// nothing matches the spoken name is passed through for PHAL to match.
func (s *Skill) devicePayload(msg domain.Message) (map[string]any, bool) {
	spoken := msg.String("entity")
	if spoken == "" {
		return nil, false
	}

	device, ok := s.registry.Resolve(spoken)
	if !ok {
		s.logger.Debug("device not in registry, passing spoken name through", "device", spoken)
		return map[string]any{"device": spoken}, true
	}

	s.logger.Debug("resolved device", "spoken", spoken, "device", device.FriendlyName(), "device_id", device.ID)
	return map[string]any{
		"device":    device.FriendlyName(),
		"device_id": device.ID,
	}, true
}

func (s *Skill) handleSetBrightnessIntent(ctx context.Context, msg domain.Message) {
	s.logger.Info("intent matched", "type", msg.Type, "data", msg.Data)
	payload, ok := s.devicePayload(msg)
	if !ok {
		s.speakDialog(ctx, msg, "no.parsed.device", nil)
		return
	}

	percent, err := domain.ParsePercent(msg.String("brightness"))
	if err != nil {
		s.logger.Warn("unusable brightness", "brightness", msg.String("brightness"), "error", err)
		s.speakDialog(ctx, msg, "brightness.not.understood", nil)
		return
	}

	payload["brightness"] = domain.PercentToHA(percent)
	s.emit(ctx, msg.Forward(domain.EventSetBrightness, payload))
	s.speakDialog(ctx, msg, "acknowledge", nil)
}

func (s *Skill) handleSetColorIntent(ctx context.Context, msg domain.Message) {
	s.logger.Info("intent matched", "type", msg.Type, "data", msg.Data)
	payload, ok := s.devicePayload(msg)
	if !ok {
		s.speakDialog(ctx, msg, "no.parsed.device", nil)
		return
	}

	color := msg.String("color")
	if color == "" {
		s.speakDialog(ctx, msg, "color.not.understood", nil)
		return
	}

	payload["color"] = color
	s.emit(ctx, msg.Forward(domain.EventSetColor, payload))
	s.speakDialog(ctx, msg, "acknowledge", nil)
}

func (s *Skill) handleOpenDashboardIntent(ctx context.Context, msg domain.Message) {
	s.emit(ctx, msg.Forward(domain.EventOpenDashboard, nil))
	s.speakDialog(ctx, msg, "ha.dashboard.opened", nil)
}

func (s *Skill) handleCloseDashboardIntent(ctx context.Context, msg domain.Message) {
	s.emit(ctx, msg.Forward(domain.EventCloseDashboard, nil))
	s.speakDialog(ctx, msg, "ha.dashboard.closed", nil)
}

func (s *Skill) handleShowAreaDashboardIntent(ctx context.Context, msg domain.Message) {
	area := msg.String("area")
	if area == "" {
		s.speakDialog(ctx, msg, "area.not.found", nil)
		return
	}
	s.emit(ctx, msg.Forward(domain.EventShowAreaDashboard, map[string]any{"area": area}))
	s.speakDialog(ctx, msg, "area.dashboard.opened", map[string]any{"area": area})
}

func (s *Skill) handleAssistIntent(ctx context.Context, msg domain.Message) {
	command := msg.String("command")
	if command == "" {
		s.speakDialog(ctx, msg, "assist.not.understood", nil)
		return
	}
	s.emit(ctx, msg.Forward(domain.EventAssist, map[string]any{"command": command}))
	s.speakDialog(ctx, msg, "assist", nil)
}

func (s *Skill) handleRebuildDeviceListIntent(ctx context.Context, msg domain.Message) {
	s.emit(ctx, msg.Forward(domain.EventRebuildDeviceList, nil))
	s.speakDialog(ctx, msg, "acknowledge", nil)
}

func (s *Skill) handleEnableIntent(ctx context.Context, msg domain.Message) {
	s.setDisabled(ctx, false)
	s.speakDialog(ctx, msg, "enable", nil)
}

func (s *Skill) handleDisableIntent(ctx context.Context, msg domain.Message) {
	s.setDisabled(ctx, true)
	s.speakDialog(ctx, msg, "disable", nil)
}

func (s *Skill) setDisabled(ctx context.Context, disabled bool) {
	err := s.updateSettings(func(settings *domain.Settings) {
		settings.DisableIntents = disabled
	})
	if err != nil {
		s.logger.Error("persisting disable_intents", "error", err)
	}
	s.applyIntentState(ctx, false)
}
