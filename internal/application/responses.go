package application

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"homeassistant-skill/internal/domain"
)

func (s *Skill) responseHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		domain.EventGetDevicesResponse: s.handleDeviceListResponse,
		domain.EventDeviceStateUpdated: s.handleDeviceStateUpdated,
		domain.EventGetDeviceResponse:  s.handleGetDeviceResponse,
		domain.EventTurnOnResponse:     s.handleTurnOnResponse,
		domain.EventTurnOffResponse:    s.handleTurnOffResponse,
		domain.EventGetBrightnessResp:  s.handleGetBrightnessResponse,
		domain.EventSetBrightnessResp:  s.handleSetBrightnessResponse,
		domain.EventGetColorResponse:   s.handleColorResponse,
		domain.EventSetColorResponse:   s.handleColorResponse,
		domain.EventAssistResponse:     s.handleAssistResponse,
	}
}

func (s *Skill) handleDeviceListResponse(ctx context.Context, msg domain.Message) {
	devices := DevicesFromMessage(msg)
	s.registry.Replace(devices)
	s.logger.Info("device list received", "devices", len(devices))
	s.SetConnected(ctx, true)
}

// handleDeviceStateUpdated must not block the dispatcher: the device list
// reply it waits for is read by the same bus connection.
func (s *Skill) handleDeviceStateUpdated(ctx context.Context, _ domain.Message) {
	s.RequestResync(ctx)
}

func (s *Skill) handleGetDeviceResponse(ctx context.Context, msg domain.Message) {
	s.logger.Info("device status received", "data", msg.Data)
	if len(msg.Data) == 0 {
		s.speakDialog(ctx, msg, "device.not.found", nil)
		return
	}

	device := domain.DeviceFromMap(msg.Data)
	if s.isSilent(device.FriendlyName()) {
		return
	}
	s.speakDialog(ctx, msg, "device.status", map[string]any{
		"device": device.FriendlyName(),
		"type":   string(device.Type),
		"state":  device.State,
	})
}

func (s *Skill) handleTurnOnResponse(ctx context.Context, msg domain.Message) {
	s.handleSwitchResponse(ctx, msg, "device.turned.on")
}

func (s *Skill) handleTurnOffResponse(ctx context.Context, msg domain.Message) {
	s.handleSwitchResponse(ctx, msg, "device.turned.off")
}

// Silent entities answer switch responses with the generic "no parsed
// device" dialog instead of naming the device.
func (s *Skill) handleSwitchResponse(ctx context.Context, msg domain.Message, dialog string) {
	device := msg.String("device")
	if device == "" || s.isSilent(device) {
		s.speakDialog(ctx, msg, "no.parsed.device", nil)
		return
	}
	s.speakDialog(ctx, msg, dialog, map[string]any{"device": device})
}

func (s *Skill) handleGetBrightnessResponse(ctx context.Context, msg domain.Message) {
	device := msg.String("device")
	if s.isSilent(device) {
		return
	}
	if device == "" {
		s.speakDialog(ctx, msg, "no.parsed.device", nil)
		return
	}

	raw, ok := msg.Value("brightness")
	value, numeric := domain.ToFloat(raw)
	if !ok || !numeric {
		s.speakDialog(ctx, msg, "lights.status.not.available", map[string]any{"device": device})
		return
	}
	s.speakDialog(ctx, msg, "lights.current.brightness", map[string]any{
		"device":     device,
		"brightness": domain.HAToPercent(value),
	})
}

// The set response reports the brightness as a percentage already.
func (s *Skill) handleSetBrightnessResponse(ctx context.Context, msg domain.Message) {
	device := msg.String("device")
	if s.isSilent(device) {
		return
	}
	if device == "" {
		s.speakDialog(ctx, msg, "no.parsed.device", nil)
		return
	}

	brightness, ok := msg.Value("brightness")
	if !ok {
		s.speakDialog(ctx, msg, "lights.status.not.available", map[string]any{"device": device})
		return
	}
	s.speakDialog(ctx, msg, "lights.current.brightness", map[string]any{
		"device":     device,
		"brightness": brightness,
	})
}

func (s *Skill) handleColorResponse(ctx context.Context, msg domain.Message) {
	device := msg.String("device")
	if s.isSilent(device) {
		return
	}
	if device == "" {
		s.speakDialog(ctx, msg, "no.parsed.device", nil)
		return
	}

	raw, ok := msg.Value("color")
	if !ok {
		s.speakDialog(ctx, msg, "lights.status.not.available", map[string]any{"device": device})
		return
	}
	s.speakDialog(ctx, msg, "lights.current.color", map[string]any{
		"device": device,
		"color":  colorText(raw),
	})
}

func (s *Skill) handleAssistResponse(ctx context.Context, msg domain.Message) {
	s.logger.Warn("home assistant assist returned an error", "data", msg.Data)
	s.speakDialog(ctx, msg, "assist.error", nil)
}

// colorText renders named colors as-is and RGB triples as "r, g, b".
func colorText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		parts := make([]string, 0, len(c))
		for _, p := range c {
			if f, ok := domain.ToFloat(p); ok {
				parts = append(parts, fmt.Sprintf("%d", int(f)))
				continue
			}
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// DevicesFromMessage accepts the device list either as the payload itself
// keyed by index, or under a "devices" key.
func DevicesFromMessage(msg domain.Message) []domain.Device {
	var items []any
	if list, ok := msg.Data["devices"].([]any); ok {
		items = list
	} else {
		keys := slices.Sorted(maps.Keys(msg.Data))
		for _, k := range keys {
			items = append(items, msg.Data[k])
		}
	}

	devices := make([]domain.Device, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := domain.DeviceFromMap(m)
		if d.FriendlyName() == "" {
			continue
		}
		devices = append(devices, d)
	}
	return devices
}
