package domain

type DeviceType string

const (
	DeviceTypeLight   DeviceType = "light"
	DeviceTypeSwitch  DeviceType = "switch"
	DeviceTypeSensor  DeviceType = "sensor"
	DeviceTypeClimate DeviceType = "climate"
	DeviceTypeMedia   DeviceType = "media_player"
	DeviceTypeVacuum  DeviceType = "vacuum"
	DeviceTypeOther   DeviceType = "other"
)

// Device mirrors the records the Home Assistant PHAL plugin reports.
type Device struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       DeviceType     `json:"type"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (d Device) FriendlyName() string {
	if name, ok := d.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return d.Name
}

// DeviceFromMap builds a Device out of a loosely typed bus payload.
func DeviceFromMap(m map[string]any) Device {
	d := Device{}
	if v, ok := m["id"].(string); ok {
		d.ID = v
	}
	if v, ok := m["name"].(string); ok {
		d.Name = v
	}
	if v, ok := m["type"].(string); ok {
		d.Type = DeviceType(v)
	}
	if v, ok := m["state"].(string); ok {
		d.State = v
	}
	if v, ok := m["attributes"].(map[string]any); ok {
		d.Attributes = v
	}
	return d
}
