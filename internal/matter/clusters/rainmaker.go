package clusters

import "matter-rainmaker/internal/matter"

// RainMaker is the manufacturer cluster on the root endpoint. Its attributes
// have no parameter mapping and are never mirrored.
var RainMaker = matter.ClusterDef{
	ID:   matter.ClusterRainMaker,
	Name: "RainMaker",
	Attributes: []matter.AttributeDef{
		{ID: matter.AttrRainMakerNodeID, Name: "RainMakerNodeID", Type: matter.TypeString, Flags: matter.FlagNonvolatile},
		{ID: matter.AttrRainMakerChallenge, Name: "Challenge", Type: matter.TypeString},
	},
}
