package clusters

import "matter-rainmaker/internal/matter"

// Descriptor list attributes are derived from the tree itself and not stored.
var Descriptor = matter.ClusterDef{
	ID:   matter.ClusterDescriptor,
	Name: "Descriptor",
	Attributes: []matter.AttributeDef{
		{ID: matter.AttrClusterRevision, Name: "ClusterRevision", Type: matter.TypeUint16, Default: matter.Uint16(2)},
	},
}
