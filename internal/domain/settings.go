package domain

import "strings"

// Settings are the user-facing skill settings persisted by the host.
type Settings struct {
	DisableIntents bool     `json:"disable_intents"`
	SilentEntities []string `json:"silent_entities"`
}

// IsSilent reports whether responses about device should not be spoken.
func (s Settings) IsSilent(device string) bool {
	key := strings.ToLower(strings.TrimSpace(device))
	if key == "" {
		return false
	}
	for _, e := range s.SilentEntities {
		if strings.ToLower(strings.TrimSpace(e)) == key {
			return true
		}
	}
	return false
}

// SplitEntities turns "a, b ,c" into a cleaned list of entity names.
func SplitEntities(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
