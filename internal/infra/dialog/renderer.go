package dialog

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path"
	"regexp"
	"strings"
	"sync"
)

var placeholder = regexp.MustCompile(`\{\{?\s*([A-Za-z0-9_]+)\s*\}?\}`)

// Renderer picks a random variant of a .dialog template and fills in its
// placeholders.
type Renderer struct {
	fsys     fs.FS
	fallback string
	logger   *slog.Logger
	pick     func(n int) int

	mu    sync.Mutex
	cache map[string][]string
}

func NewRenderer(fsys fs.FS, fallbackLang string, logger *slog.Logger) *Renderer {
	return &Renderer{
		fsys:     fsys,
		fallback: strings.ToLower(fallbackLang),
		logger:   logger,
		pick:     rand.IntN,
		cache:    make(map[string][]string),
	}
}

func (r *Renderer) Render(lang, name string, data map[string]any) string {
	variants := r.variants(lang, name)
	if len(variants) == 0 {
		return strings.ReplaceAll(name, ".", " ")
	}
	return Fill(variants[r.pick(len(variants))], data)
}

// Fill substitutes {key} and {{key}} placeholders. Keys missing from data
// render as empty.
func Fill(template string, data map[string]any) string {
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		v, ok := data[key]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
	return strings.Join(strings.Fields(out), " ")
}

func (r *Renderer) variants(lang, name string) []string {
	for _, l := range []string{strings.ToLower(lang), r.fallback} {
		if l == "" {
			continue
		}
		if v := r.load(path.Join(l, name+".dialog")); len(v) > 0 {
			return v
		}
	}
	r.logger.Warn("dialog not found", "dialog", name, "lang", lang)
	return nil
}

func (r *Renderer) load(file string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache[file]; ok {
		return v
	}

	raw, err := fs.ReadFile(r.fsys, file)
	if err != nil {
		r.cache[file] = nil
		return nil
	}

	lines := ReadLines(raw)
	r.cache[file] = lines
	return lines
}

// ReadLines returns the non-empty lines of a resource file, skipping
// "#" comments.
func ReadLines(raw []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
