package store

import (
	"context"
	"errors"
	"log/slog"

	"matter-rainmaker/internal/matter"
)

// Hooks persists nonvolatile attributes after every committed update.
type Hooks struct {
	store  Store
	node   *matter.Node
	logger *slog.Logger
}

func NewHooks(s Store, n *matter.Node, logger *slog.Logger) *Hooks {
	return &Hooks{store: s, node: n, logger: logger.With("component", "store")}
}

func (h *Hooks) PreUpdate(_ context.Context, _ matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	return v, nil
}

func (h *Hooks) PostUpdate(_ context.Context, ref matter.AttributeRef, v matter.Value, origin matter.Origin) {
	if origin == matter.OriginRestore {
		return
	}
	a, err := h.node.Attribute(ref)
	if err != nil || !a.IsNonvolatile() {
		return
	}
	if err := h.store.SaveAttribute(ref, v); err != nil {
		h.logger.Error("persist attribute", "attr", ref.String(), "err", err)
	}
}

// Restore reapplies saved attribute values through Update with
// OriginRestore. Values the node no longer accepts are skipped.
func Restore(ctx context.Context, n *matter.Node, s Store, logger *slog.Logger) (int, error) {
	attrs, err := s.LoadAttributes()
	if err != nil {
		return 0, err
	}
	restored := 0
	for ref, v := range attrs {
		if err := n.Update(ctx, ref, v, matter.OriginRestore); err != nil {
			lvl := slog.LevelWarn
			if errors.Is(err, matter.ErrEndpointNotFound) || errors.Is(err, matter.ErrClusterNotFound) || errors.Is(err, matter.ErrAttributeNotFound) {
				lvl = slog.LevelDebug
			}
			logger.Log(ctx, lvl, "skip persisted attribute", "attr", ref.String(), "err", err)
			continue
		}
		restored++
	}
	return restored, nil
}
