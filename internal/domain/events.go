package domain

// Bus topics understood by the Home Assistant PHAL plugin.
const (
	phalPrefix = "ovos.phal.plugin.homeassistant."

	EventGetDevices         = phalPrefix + "get.devices"
	EventGetDevice          = phalPrefix + "get.device"
	EventTurnOn             = phalPrefix + "device.turn_on"
	EventTurnOff            = phalPrefix + "device.turn_off"
	EventGetBrightness      = phalPrefix + "get.light.brightness"
	EventSetBrightness      = phalPrefix + "set.light.brightness"
	EventIncreaseBrightness = phalPrefix + "increase.light.brightness"
	EventDecreaseBrightness = phalPrefix + "decrease.light.brightness"
	EventGetColor           = phalPrefix + "get.light.color"
	EventSetColor           = phalPrefix + "set.light.color"
	EventShowAreaDashboard  = phalPrefix + "show.area.dashboard"
	EventAssist             = phalPrefix + "assist.intent"
	EventRebuildDeviceList  = phalPrefix + "rebuild.device.list"
	EventDeviceStateUpdated = phalPrefix + "device.state.updated"
	EventAssistResponse     = phalPrefix + "assist.message.response"
	EventOpenDashboard      = "ovos-PHAL-plugin-homeassistant.home"
	EventCloseDashboard     = "ovos-PHAL-plugin-homeassistant.close"
	ResponseSuffix          = ".response"
	EventGetDevicesResponse = EventGetDevices + ResponseSuffix
	EventGetDeviceResponse  = EventGetDevice + ResponseSuffix
	EventTurnOnResponse     = EventTurnOn + ResponseSuffix
	EventTurnOffResponse    = EventTurnOff + ResponseSuffix
	EventGetBrightnessResp  = EventGetBrightness + ResponseSuffix
	EventSetBrightnessResp  = EventSetBrightness + ResponseSuffix
	EventGetColorResponse   = EventGetColor + ResponseSuffix
	EventSetColorResponse   = EventSetColor + ResponseSuffix
)

// Host runtime topics.
const (
	EventSpeak          = "speak"
	EventRegisterIntent = "padatious:register_intent"
	EventDetachIntent   = "detach_intent"
	EventUtterance      = "recognizer_loop:utterance"
)

type Intent string

const (
	IntentSensor             Intent = "sensor.intent"
	IntentTurnOn             Intent = "turn.on.intent"
	IntentTurnOff            Intent = "turn.off.intent"
	IntentStop               Intent = "stop.intent"
	IntentOpenDashboard      Intent = "open.dashboard.intent"
	IntentCloseDashboard     Intent = "close.dashboard.intent"
	IntentShowAreaDashboard  Intent = "show.area.dashboard.intent"
	IntentAssist             Intent = "assist.intent"
	IntentGetBrightness      Intent = "lights.get.brightness.intent"
	IntentSetBrightness      Intent = "lights.set.brightness.intent"
	IntentIncreaseBrightness Intent = "lights.increase.brightness.intent"
	IntentDecreaseBrightness Intent = "lights.decrease.brightness.intent"
	IntentGetColor           Intent = "lights.get.color.intent"
	IntentSetColor           Intent = "lights.set.color.intent"
	IntentRebuildDeviceList  Intent = "rebuild.device.list.intent"
	IntentEnable             Intent = "enable.intent"
	IntentDisable            Intent = "disable.intent"
)

// ConnectedIntents only make sense while the PHAL plugin is reachable and
// the user has not switched the skill off.
var ConnectedIntents = []Intent{
	IntentSensor,
	IntentTurnOn,
	IntentTurnOff,
	IntentStop,
	IntentOpenDashboard,
	IntentCloseDashboard,
	IntentShowAreaDashboard,
	IntentAssist,
	IntentGetBrightness,
	IntentSetBrightness,
	IntentIncreaseBrightness,
	IntentDecreaseBrightness,
	IntentGetColor,
	IntentSetColor,
	IntentRebuildDeviceList,
}

// ControlIntents stay registered regardless of the enable state.
var ControlIntents = []Intent{
	IntentEnable,
	IntentDisable,
}

func AllIntents() []Intent {
	all := make([]Intent, 0, len(ConnectedIntents)+len(ControlIntents))
	all = append(all, ConnectedIntents...)
	return append(all, ControlIntents...)
}

// QualifiedName is the name the host intent service knows the intent by.
func (i Intent) QualifiedName(skillID string) string {
	return skillID + ":" + string(i)
}
