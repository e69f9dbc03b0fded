package clusters

import "matter-rainmaker/internal/matter"

var LevelControl = matter.ClusterDef{
	ID:   matter.ClusterLevelControl,
	Name: "Level Control",
	Attributes: []matter.AttributeDef{
		{ID: matter.AttrCurrentLevel, Name: "CurrentLevel", Type: matter.TypeUint8, Flags: matter.FlagNonvolatile | matter.FlagReportable,
			Bounds: &matter.Bounds{Min: matter.Uint8(0), Max: matter.Uint8(254)}},
		{ID: matter.AttrMinLevel, Name: "MinLevel", Type: matter.TypeUint8, Default: matter.Uint8(1)},
		{ID: matter.AttrMaxLevel, Name: "MaxLevel", Type: matter.TypeUint8, Default: matter.Uint8(254)},
		{ID: matter.AttrOnLevel, Name: "OnLevel", Type: matter.TypeUint8, Flags: matter.FlagWritable,
			Bounds: &matter.Bounds{Min: matter.Uint8(0), Max: matter.Uint8(254)}},
		{ID: matter.AttrStartUpCurrentLevel, Name: "StartUpCurrentLevel", Type: matter.TypeUint8, Flags: matter.FlagWritable | matter.FlagNonvolatile},
		{ID: matter.AttrClusterRevision, Name: "ClusterRevision", Type: matter.TypeUint16, Default: matter.Uint16(5)},
	},
}
