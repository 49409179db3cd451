package intents_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"homeassistant-skill/internal/infra/intents"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		template string
		want     []string
	}{
		{
			template: "turn on [the] {entity}",
			want:     []string{"turn on the {entity}", "turn on {entity}"},
		},
		{
			template: "(what is|what's) the (status|state) of {entity}",
			want: []string{
				"what is the status of {entity}",
				"what is the state of {entity}",
				"what's the status of {entity}",
				"what's the state of {entity}",
			},
		},
		{
			template: "make [the] {entity} [color|colour] {color}",
			want: []string{
				"make the {entity} color {color}",
				"make the {entity} colour {color}",
				"make the {entity} {color}",
				"make {entity} color {color}",
				"make {entity} colour {color}",
				"make {entity} {color}",
			},
		},
		{
			template: "(open|(show|display) me) the dashboard",
			want: []string{
				"open the dashboard",
				"show me the dashboard",
				"display me the dashboard",
			},
		},
		{
			template: "plain sentence",
			want:     []string{"plain sentence"},
		},
		{
			template: "[please] [please] stop",
			want:     []string{"please please stop", "please stop", "stop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, intents.Expand(tt.template)); diff != "" {
				t.Errorf("Expand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
