package rainmaker

// Standard parameter names.
const (
	DefNameName       = "Name"
	DefPowerName      = "Power"
	DefBrightnessName = "Brightness"
	DefHueName        = "Hue"
	DefSaturationName = "Saturation"
	DefCCTName        = "CCT"
)

// Standard parameter types.
const (
	ParamName       = "esp.param.name"
	ParamPower      = "esp.param.power"
	ParamBrightness = "esp.param.brightness"
	ParamHue        = "esp.param.hue"
	ParamSaturation = "esp.param.saturation"
	ParamCCT        = "esp.param.cct"
)

// UI hints.
const (
	UIText      = "esp.ui.text"
	UIToggle    = "esp.ui.toggle"
	UISlider    = "esp.ui.slider"
	UIHueSlider = "esp.ui.hue-slider"
)

// Standard device types.
const (
	DeviceLightbulb = "esp.device.lightbulb"
	DeviceLight     = "esp.device.light"
	DeviceSwitch    = "esp.device.switch"
	DeviceOther     = "esp.device.other"
)

// Param property flags.
const (
	PropRead       uint8 = 0x01
	PropWrite      uint8 = 0x02
	PropTimeSeries uint8 = 0x04
	PropPersist    uint8 = 0x08
)

// WriteSource identifies who requested a parameter write.
type WriteSource uint8

const (
	SourceInit WriteSource = iota
	SourceCloud
	SourceSchedule
	SourceScenes
	SourceLocal
)

func (s WriteSource) String() string {
	switch s {
	case SourceInit:
		return "Init"
	case SourceCloud:
		return "Cloud"
	case SourceSchedule:
		return "Schedule"
	case SourceScenes:
		return "Scenes"
	case SourceLocal:
		return "Local"
	}
	return "Unknown"
}
