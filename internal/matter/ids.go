package matter

// Cluster IDs
const (
	ClusterIdentify     uint32 = 0x0003
	ClusterOnOff        uint32 = 0x0006
	ClusterLevelControl uint32 = 0x0008
	ClusterDescriptor   uint32 = 0x001D
	ClusterColorControl uint32 = 0x0300

	// ClusterRainMaker is the manufacturer-specific cluster that carries the
	// RainMaker node identity on the root endpoint.
	ClusterRainMaker uint32 = 0x131BFC00
)

// Attribute IDs, per cluster.
const (
	AttrClusterRevision uint32 = 0xFFFD

	AttrIdentifyTime uint32 = 0x0000
	AttrIdentifyType uint32 = 0x0001

	AttrOnOff        uint32 = 0x0000
	AttrStartUpOnOff uint32 = 0x4003

	AttrCurrentLevel        uint32 = 0x0000
	AttrMinLevel            uint32 = 0x0002
	AttrMaxLevel            uint32 = 0x0003
	AttrOnLevel             uint32 = 0x0011
	AttrStartUpCurrentLevel uint32 = 0x4000

	AttrCurrentHue                    uint32 = 0x0000
	AttrCurrentSaturation             uint32 = 0x0001
	AttrColorTemperatureMireds        uint32 = 0x0007
	AttrColorMode                     uint32 = 0x0008
	AttrColorTempPhysicalMinMireds    uint32 = 0x400B
	AttrColorTempPhysicalMaxMireds    uint32 = 0x400C
	AttrStartUpColorTemperatureMireds uint32 = 0x4010

	AttrRainMakerNodeID    uint32 = 0x0001
	AttrRainMakerChallenge uint32 = 0x0002
)

// ColorControl feature bits.
const (
	FeatureHueSaturation    uint32 = 0x01
	FeatureColorTemperature uint32 = 0x10
)

// ColorMode values.
const (
	ColorModeHueSaturation    uint8 = 0x00
	ColorModeXY               uint8 = 0x01
	ColorModeColorTemperature uint8 = 0x02
)

// Device type IDs
const (
	DeviceTypeRootNode              uint32 = 0x0016
	DeviceTypeOnOffLight            uint32 = 0x0100
	DeviceTypeDimmableLight         uint32 = 0x0101
	DeviceTypeColorTemperatureLight uint32 = 0x010C
	DeviceTypeExtendedColorLight    uint32 = 0x010D
)
