package dialog_test

import (
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"homeassistant-skill/internal/infra/dialog"
	"homeassistant-skill/locale"
)

func newRenderer(fsys fstest.MapFS) *dialog.Renderer {
	return dialog.NewRenderer(fsys, "en-us", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRenderer_Render(t *testing.T) {
	fsys := fstest.MapFS{
		"en-us/device.turned.on.dialog": {Data: []byte("# comment\n\n{device} is on.\n")},
		"de-de/device.turned.on.dialog": {Data: []byte("{{device}} ist an.\n")},
	}
	r := newRenderer(fsys)

	data := map[string]any{"device": "Kitchen Light"}

	if got := r.Render("en-us", "device.turned.on", data); got != "Kitchen Light is on." {
		t.Errorf("en-us: got %q", got)
	}
	if got := r.Render("DE-DE", "device.turned.on", data); got != "Kitchen Light ist an." {
		t.Errorf("de-de: got %q", got)
	}
	if got := r.Render("fr-fr", "device.turned.on", data); got != "Kitchen Light is on." {
		t.Errorf("fallback: got %q", got)
	}
}

func TestRenderer_UnknownDialog(t *testing.T) {
	r := newRenderer(fstest.MapFS{})

	if got := r.Render("en-us", "no.parsed.device", nil); got != "no parsed device" {
		t.Errorf("got %q", got)
	}
}

func TestRenderer_PicksAVariant(t *testing.T) {
	fsys := fstest.MapFS{
		"en-us/acknowledge.dialog": {Data: []byte("Okay.\nGot it.\nSure.\n")},
	}
	r := newRenderer(fsys)
	options := []string{"Okay.", "Got it.", "Sure."}

	for i := 0; i < 20; i++ {
		if got := r.Render("en-us", "acknowledge", nil); !slices.Contains(options, got) {
			t.Fatalf("unexpected variant %q", got)
		}
	}
}

func TestFill(t *testing.T) {
	tests := []struct {
		template string
		data     map[string]any
		want     string
	}{
		{"{device} is at {brightness} percent.", map[string]any{"device": "lamp", "brightness": 40}, "lamp is at 40 percent."},
		{"The {type} {device} is {state}.", map[string]any{"device": "porch", "state": "off"}, "The porch is off."},
		{"{{ area }} dashboard", map[string]any{"area": "garage"}, "garage dashboard"},
	}

	for _, tt := range tests {
		if got := dialog.Fill(tt.template, tt.data); got != tt.want {
			t.Errorf("Fill(%q): got %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestShippedDialogsRender(t *testing.T) {
	r := dialog.NewRenderer(locale.FS, locale.DefaultLang, slog.New(slog.NewTextHandler(io.Discard, nil)))

	names := []string{
		"acknowledge", "no.parsed.device", "device.not.found", "device.status",
		"device.turned.on", "device.turned.off", "ha.dashboard.opened", "ha.dashboard.closed",
		"area.dashboard.opened", "area.not.found", "assist", "assist.not.understood",
		"assist.error", "lights.current.brightness", "lights.current.color",
		"lights.status.not.available", "brightness.not.understood", "color.not.understood",
		"enable", "disable",
	}
	data := map[string]any{"device": "lamp", "area": "den", "brightness": 10, "color": "red", "state": "on", "type": "light"}

	for _, name := range names {
		got := r.Render("en-us", name, data)
		if got == "" || got == strings.ReplaceAll(name, ".", " ") {
			t.Errorf("dialog %s not shipped: got %q", name, got)
		}
	}
}
