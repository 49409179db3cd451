package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Message is the envelope exchanged on the host messagebus.
type Message struct {
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
	Context map[string]any `json:"context"`
}

func NewMessage(msgType string, data map[string]any) Message {
	if data == nil {
		data = map[string]any{}
	}
	return Message{
		Type:    msgType,
		Data:    data,
		Context: map[string]any{},
	}
}

// Forward keeps the context of m so the host can route the new message to
// the same session.
func (m Message) Forward(msgType string, data map[string]any) Message {
	out := NewMessage(msgType, data)
	maps.Copy(out.Context, m.Context)
	return out
}

// Response builds the conventional "<type>.response" reply with source and
// destination swapped.
func (m Message) Response(data map[string]any) Message {
	out := m.Forward(m.Type+".response", data)
	src, hasSrc := m.Context["source"]
	dst, hasDst := m.Context["destination"]
	delete(out.Context, "source")
	delete(out.Context, "destination")
	if hasDst {
		out.Context["source"] = dst
	}
	if hasSrc {
		out.Context["destination"] = src
	}
	return out
}

// String returns the data value at key rendered as a string. Missing and
// null values give "".
func (m Message) String(key string) string {
	v, ok := m.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (m Message) Value(key string) (any, bool) {
	v, ok := m.Data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (m Message) Marshal() ([]byte, error) {
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	if m.Context == nil {
		m.Context = map[string]any{}
	}
	return json.Marshal(m)
}

func UnmarshalMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decoding bus message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("bus message without type")
	}
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	if m.Context == nil {
		m.Context = map[string]any{}
	}
	return m, nil
}
