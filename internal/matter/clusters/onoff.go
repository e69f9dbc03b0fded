package clusters

import "matter-rainmaker/internal/matter"

var OnOff = matter.ClusterDef{
	ID:   matter.ClusterOnOff,
	Name: "On/Off",
	Attributes: []matter.AttributeDef{
		{ID: matter.AttrOnOff, Name: "OnOff", Type: matter.TypeBool, Flags: matter.FlagNonvolatile | matter.FlagReportable},
		{ID: matter.AttrStartUpOnOff, Name: "StartUpOnOff", Type: matter.TypeUint8, Flags: matter.FlagWritable | matter.FlagNonvolatile,
			Bounds: &matter.Bounds{Min: matter.Uint8(0), Max: matter.Uint8(2)}},
		{ID: matter.AttrClusterRevision, Name: "ClusterRevision", Type: matter.TypeUint16, Default: matter.Uint16(4)},
	},
}
