package bridge

import (
	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

// Native and standard ranges of the remapped attributes.
const (
	MatterBrightness = 254
	MatterHue        = 254
	MatterSaturation = 254

	StandardBrightness = 100
	StandardHue        = 360
	StandardSaturation = 100

	// TemperatureFactor converts mireds to kelvin and back: k = factor / m.
	TemperatureFactor = 1000000
)

// RemapKind selects how a value is converted between the two models.
type RemapKind uint8

const (
	// RemapNone copies the value, widening small integers to int.
	RemapNone RemapKind = iota
	// RemapLinear scales between 0..Local and 0..External.
	RemapLinear
	// RemapInverse converts with x' = Factor / x.
	RemapInverse
)

// Remap is the conversion policy of one mapping.
type Remap struct {
	Kind     RemapKind
	Local    int64
	External int64
	Factor   int64
}

func Linear(local, external int64) Remap {
	return Remap{Kind: RemapLinear, Local: local, External: external}
}

func Inverse(factor int64) Remap {
	return Remap{Kind: RemapInverse, Factor: factor}
}

// FallbackBounds are used when the attribute declares no bounds of its own.
type FallbackBounds struct {
	Min, Max, Step int32
}

// Mapping ties one cluster attribute to one device parameter.
type Mapping struct {
	Cluster   uint32
	Attribute uint32
	LocalType matter.ValueType

	Param     string
	ParamType string
	UIType    string
	Remap     Remap
	Fallback  *FallbackBounds
	// Primary marks the parameter as the device's primary one.
	Primary bool
}

var mappings = []Mapping{
	{
		Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, LocalType: matter.TypeBool,
		Param: rainmaker.DefPowerName, ParamType: rainmaker.ParamPower, UIType: rainmaker.UIToggle,
		Primary: true,
	},
	{
		Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel, LocalType: matter.TypeUint8,
		Param: rainmaker.DefBrightnessName, ParamType: rainmaker.ParamBrightness, UIType: rainmaker.UISlider,
		Remap:    Linear(MatterBrightness, StandardBrightness),
		Fallback: &FallbackBounds{Min: 0, Max: StandardBrightness, Step: 1},
	},
	{
		Cluster: matter.ClusterColorControl, Attribute: matter.AttrCurrentHue, LocalType: matter.TypeUint8,
		Param: rainmaker.DefHueName, ParamType: rainmaker.ParamHue, UIType: rainmaker.UIHueSlider,
		Remap:    Linear(MatterHue, StandardHue),
		Fallback: &FallbackBounds{Min: 0, Max: StandardHue, Step: 1},
	},
	{
		Cluster: matter.ClusterColorControl, Attribute: matter.AttrCurrentSaturation, LocalType: matter.TypeUint8,
		Param: rainmaker.DefSaturationName, ParamType: rainmaker.ParamSaturation, UIType: rainmaker.UISlider,
		Remap:    Linear(MatterSaturation, StandardSaturation),
		Fallback: &FallbackBounds{Min: 0, Max: StandardSaturation, Step: 1},
	},
	{
		Cluster: matter.ClusterColorControl, Attribute: matter.AttrColorTemperatureMireds, LocalType: matter.TypeUint16,
		Param: rainmaker.DefCCTName, ParamType: rainmaker.ParamCCT, UIType: rainmaker.UISlider,
		Remap:    Inverse(TemperatureFactor),
		Fallback: &FallbackBounds{Min: 2700, Max: 6500, Step: 100},
	},
}

type attrKey struct {
	cluster, attribute uint32
}

var (
	byAttribute = make(map[attrKey]*Mapping, len(mappings))
	byParam     = make(map[string]*Mapping, len(mappings))
)

func init() {
	for i := range mappings {
		m := &mappings[i]
		byAttribute[attrKey{m.Cluster, m.Attribute}] = m
		byParam[m.Param] = m
	}
}

// Mappings returns a copy of the mapping table.
func Mappings() []Mapping {
	return append([]Mapping(nil), mappings...)
}

// Lookup returns the mapping of a cluster attribute.
func Lookup(cluster, attribute uint32) (Mapping, bool) {
	m, ok := byAttribute[attrKey{cluster, attribute}]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// LookupParam returns the mapping of a parameter name.
func LookupParam(name string) (Mapping, bool) {
	m, ok := byParam[name]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// ParamNameFor returns the parameter name of a cluster attribute.
func ParamNameFor(cluster, attribute uint32) (string, bool) {
	m, ok := byAttribute[attrKey{cluster, attribute}]
	if !ok {
		return "", false
	}
	return m.Param, true
}

// ClusterAndAttributeFor returns the cluster attribute of a parameter name.
func ClusterAndAttributeFor(param string) (cluster, attribute uint32, ok bool) {
	m, ok := byParam[param]
	if !ok {
		return 0, 0, false
	}
	return m.Cluster, m.Attribute, true
}

var deviceTypes = map[uint32]string{
	matter.DeviceTypeColorTemperatureLight: rainmaker.DeviceLightbulb,
	matter.DeviceTypeExtendedColorLight:    rainmaker.DeviceLightbulb,
	matter.DeviceTypeDimmableLight:         rainmaker.DeviceLightbulb,
	matter.DeviceTypeOnOffLight:            rainmaker.DeviceLight,
}

// DeviceTypeFor returns the device type of a Matter device type ID.
func DeviceTypeFor(matterDeviceType uint32) (string, bool) {
	t, ok := deviceTypes[matterDeviceType]
	return t, ok
}
