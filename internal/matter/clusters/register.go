package clusters

import (
	"log/slog"

	"matter-rainmaker/internal/matter"
)

// NewRegistry returns a registry with every built-in cluster registered.
func NewRegistry(logger *slog.Logger) *matter.Registry {
	r := matter.NewRegistry(logger)
	r.Register(Identify)     // 0x0003
	r.Register(OnOff)        // 0x0006
	r.Register(LevelControl) // 0x0008
	r.Register(Descriptor)   // 0x001D
	r.Register(ColorControl) // 0x0300
	r.Register(RainMaker)    // 0x131BFC00
	return r
}
