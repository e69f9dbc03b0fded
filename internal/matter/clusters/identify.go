package clusters

import "matter-rainmaker/internal/matter"

var Identify = matter.ClusterDef{
	ID:   matter.ClusterIdentify,
	Name: "Identify",
	Attributes: []matter.AttributeDef{
		{ID: matter.AttrIdentifyTime, Name: "IdentifyTime", Type: matter.TypeUint16, Flags: matter.FlagWritable},
		{ID: matter.AttrIdentifyType, Name: "IdentifyType", Type: matter.TypeUint8, Default: matter.Uint8(2)},
		{ID: matter.AttrClusterRevision, Name: "ClusterRevision", Type: matter.TypeUint16, Default: matter.Uint16(4)},
	},
}
