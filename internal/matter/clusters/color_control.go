package clusters

import "matter-rainmaker/internal/matter"

// ColorTemperatureMireds carries no declared bounds: the physical limits are
// exposed through ColorTempPhysicalMin/MaxMireds instead.
var ColorControl = matter.ClusterDef{
	ID:   matter.ClusterColorControl,
	Name: "Color Control",
	Attributes: []matter.AttributeDef{
		{ID: matter.AttrCurrentHue, Name: "CurrentHue", Type: matter.TypeUint8, Flags: matter.FlagNonvolatile | matter.FlagReportable,
			Feature: matter.FeatureHueSaturation, Bounds: &matter.Bounds{Min: matter.Uint8(0), Max: matter.Uint8(254)}},
		{ID: matter.AttrCurrentSaturation, Name: "CurrentSaturation", Type: matter.TypeUint8, Flags: matter.FlagNonvolatile | matter.FlagReportable,
			Feature: matter.FeatureHueSaturation, Bounds: &matter.Bounds{Min: matter.Uint8(0), Max: matter.Uint8(254)}},
		{ID: matter.AttrColorTemperatureMireds, Name: "ColorTemperatureMireds", Type: matter.TypeUint16, Flags: matter.FlagNonvolatile | matter.FlagReportable,
			Feature: matter.FeatureColorTemperature, Default: matter.Uint16(250)},
		{ID: matter.AttrColorMode, Name: "ColorMode", Type: matter.TypeUint8, Flags: matter.FlagNonvolatile,
			Default: matter.Uint8(matter.ColorModeColorTemperature), Bounds: &matter.Bounds{Min: matter.Uint8(0), Max: matter.Uint8(2)}},
		{ID: matter.AttrColorTempPhysicalMinMireds, Name: "ColorTempPhysicalMinMireds", Type: matter.TypeUint16,
			Feature: matter.FeatureColorTemperature, Default: matter.Uint16(153)},
		{ID: matter.AttrColorTempPhysicalMaxMireds, Name: "ColorTempPhysicalMaxMireds", Type: matter.TypeUint16,
			Feature: matter.FeatureColorTemperature, Default: matter.Uint16(370)},
		{ID: matter.AttrStartUpColorTemperatureMireds, Name: "StartUpColorTemperatureMireds", Type: matter.TypeUint16, Flags: matter.FlagWritable | matter.FlagNonvolatile,
			Feature: matter.FeatureColorTemperature},
		{ID: matter.AttrClusterRevision, Name: "ClusterRevision", Type: matter.TypeUint16, Default: matter.Uint16(6)},
	},
}
