package phal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"homeassistant-skill/internal/application"
	"homeassistant-skill/internal/domain"
)

// Requester sends a message and waits for its reply.
type Requester interface {
	WaitForResponse(ctx context.Context, msg domain.Message, replyType string) (domain.Message, error)
}

// Registry caches the device list reported by the Home Assistant PHAL plugin
// and resolves spoken names against it.
type Registry struct {
	bus     Requester
	timeout time.Duration
	logger  *slog.Logger

	mu          sync.RWMutex
	devices     []domain.Device
	names       []string
	deviceIndex map[string]int
}

func NewRegistry(bus Requester, timeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		bus:         bus,
		timeout:     timeout,
		logger:      logger.With("component", "registry"),
		deviceIndex: make(map[string]int),
	}
}

func (r *Registry) Sync(ctx context.Context) error {
	r.logger.Debug("requesting device list from PHAL")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.bus.WaitForResponse(ctx,
		domain.NewMessage(domain.EventGetDevices, nil),
		domain.EventGetDevicesResponse,
	)
	if err != nil {
		return fmt.Errorf("fetching devices: %w", err)
	}

	r.Replace(application.DevicesFromMessage(reply))
	return nil
}

func (r *Registry) Replace(devices []domain.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make([]domain.Device, len(devices))
	copy(r.devices, devices)

	r.names = make([]string, len(r.devices))
	r.deviceIndex = make(map[string]int, len(r.devices))
	for i, d := range r.devices {
		key := strings.ToLower(d.FriendlyName())
		r.names[i] = key
		if _, dup := r.deviceIndex[key]; !dup {
			r.deviceIndex[key] = i
		}
	}

	r.logger.Debug("device list updated", "devices", len(r.devices))
}

func (r *Registry) Devices() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.Device, len(r.devices))
	copy(result, r.devices)
	return result
}

// Resolve prefers an exact friendly-name match and falls back to the best
// fuzzy subsequence match.
func (r *Registry) Resolve(spoken string) (domain.Device, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(spoken), " "))
	if key == "" {
		return domain.Device{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.deviceIndex[key]; ok {
		return r.devices[i], true
	}

	matches := fuzzy.Find(key, r.names)
	if len(matches) == 0 {
		return domain.Device{}, false
	}
	best := matches[0]
	r.logger.Debug("fuzzy matched device",
		"spoken", spoken,
		"device", r.devices[best.Index].FriendlyName(),
		"score", best.Score,
	)
	return r.devices[best.Index], true
}

// StartPeriodicSync runs sync every interval until ctx is done.
func (r *Registry) StartPeriodicSync(ctx context.Context, interval time.Duration, sync func(context.Context)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sync(ctx)
			}
		}
	}()
}
