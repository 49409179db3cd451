package application

import (
	"context"

	"homeassistant-skill/internal/domain"
)

type MessageHandler func(msg domain.Message)

type MessageBus interface {
	Emit(ctx context.Context, msg domain.Message) error
	On(msgType string, handler MessageHandler)
}

type DialogRenderer interface {
	Render(lang, name string, data map[string]any) string
}

// IntentService registers intents with the host's intent engine.
type IntentService interface {
	Register(ctx context.Context, intent domain.Intent) error
	Detach(ctx context.Context, intent domain.Intent) error
}

type SettingsStore interface {
	Load() (domain.Settings, error)
	Save(settings domain.Settings) error
}

type DeviceRegistry interface {
	Sync(ctx context.Context) error
	Replace(devices []domain.Device)
	Devices() []domain.Device
	Resolve(spoken string) (domain.Device, bool)
}
