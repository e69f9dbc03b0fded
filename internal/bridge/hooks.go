package bridge

import (
	"context"

	"matter-rainmaker/internal/matter"
)

// PreUpdate passes every value through unchanged.
func (b *Bridge) PreUpdate(_ context.Context, _ matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	return v, nil
}

// PostUpdate propagates local changes outward once the bridge is ready.
// External and restored changes are never echoed back.
func (b *Bridge) PostUpdate(ctx context.Context, ref matter.AttributeRef, v matter.Value, origin matter.Origin) {
	if origin != matter.OriginLocal {
		return
	}
	if !b.Ready() {
		b.logger.Debug("bridge not ready, not propagating", "attr", ref.String())
		return
	}
	if err := b.Outward(ctx, ref, v); err != nil {
		b.logger.Warn("outward update failed", "attr", ref.String(), "err", err)
	}
}
