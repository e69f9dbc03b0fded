package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

var (
	ErrUnmappedParam = errors.New("unmapped parameter")
	ErrNoNode        = errors.New("node not initialised")
)

// Bridge keeps a Matter node and a RainMaker node in sync.
type Bridge struct {
	matter *matter.Node
	rmaker *rainmaker.Node
	tr     *Translator
	logger *slog.Logger
	ready  atomic.Bool
}

// New creates a bridge between the two nodes. Endpoints are mirrored once
// bound with BindEndpoint and synthesized.
func New(m *matter.Node, r *rainmaker.Node, logger *slog.Logger) *Bridge {
	return &Bridge{
		matter: m,
		rmaker: r,
		tr:     NewTranslator(),
		logger: logger.With("component", "bridge"),
	}
}

// BindEndpoint names the device that mirrors endpoint.
func (b *Bridge) BindEndpoint(endpoint uint16, deviceName string) error {
	return b.tr.Bind(endpoint, deviceName)
}

// Translator returns the endpoint/device name table.
func (b *Bridge) Translator() *Translator { return b.tr }

// SetReady enables outward propagation from PostUpdate.
func (b *Bridge) SetReady() {
	b.ready.Store(true)
	b.logger.Info("bridge ready")
}

// Ready reports whether outward propagation is enabled.
func (b *Bridge) Ready() bool { return b.ready.Load() }

// Outward pushes a committed local change to the mirrored parameter. Changes
// to unmapped endpoints or attributes are ignored.
func (b *Bridge) Outward(ctx context.Context, ref matter.AttributeRef, v matter.Value) error {
	if b.rmaker == nil {
		return ErrNoNode
	}
	devName, ok := b.tr.DeviceNameFor(ref.Endpoint)
	if !ok {
		b.logger.Debug("endpoint not mirrored", "attr", ref.String())
		return nil
	}
	paramName, ok := ParamNameFor(ref.Cluster, ref.Attribute)
	if !ok {
		b.logger.Debug("attribute not mapped", "attr", ref.String())
		return nil
	}

	dev := b.rmaker.DeviceByName(devName)
	if dev == nil {
		return fmt.Errorf("%w: %s", rainmaker.ErrDeviceNotFound, devName)
	}
	p := dev.ParamByName(paramName)
	if p == nil {
		return fmt.Errorf("%w: %s.%s", rainmaker.ErrParamNotFound, devName, paramName)
	}

	rv, err := ToExternal(v, ref.Cluster, ref.Attribute)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedType) {
			return fmt.Errorf("outward %s: %w", ref, err)
		}
		b.logger.Error("remap failed", "attr", ref.String(), "err", err)
	}
	if err := p.UpdateAndReport(ctx, rv); err != nil {
		return fmt.Errorf("outward %s.%s: %w", devName, paramName, err)
	}
	b.logger.Debug("outward", "device", devName, "param", paramName, "value", rv.String())
	return nil
}

// Inward applies an external parameter write to the local attribute and
// returns the committed value mapped back to the parameter, which differs
// from v when a pre-update hook transformed it. Writes to unmapped devices
// or parameters fail with ErrUnmappedParam and values outside the parameter
// bounds with ErrOutOfRange; neither touches the node.
func (b *Bridge) Inward(ctx context.Context, device, param string, v rainmaker.Value) (rainmaker.Value, error) {
	if b.matter == nil {
		return rainmaker.Invalid(), ErrNoNode
	}
	ep := b.tr.EndpointIDFor(device)
	if ep == InvalidEndpoint {
		return rainmaker.Invalid(), fmt.Errorf("%w: device %q", ErrUnmappedParam, device)
	}
	m, ok := LookupParam(param)
	if !ok {
		return rainmaker.Invalid(), fmt.Errorf("%w: %s.%s", ErrUnmappedParam, device, param)
	}

	if bounds := b.paramBounds(device, m); bounds != nil && !bounds.Contains(v) {
		return rainmaker.Invalid(), fmt.Errorf("%w: %s.%s = %s outside [%s, %s]", ErrOutOfRange, device, param, v, bounds.Min, bounds.Max)
	}
	local, err := ToLocal(v, m.Cluster, m.Attribute)
	if err != nil {
		return rainmaker.Invalid(), fmt.Errorf("inward %s.%s: %w", device, param, err)
	}

	ref := matter.AttributeRef{Endpoint: ep, Cluster: m.Cluster, Attribute: m.Attribute}
	if err := b.matter.Update(ctx, ref, local, matter.OriginExternal); err != nil {
		return rainmaker.Invalid(), fmt.Errorf("inward %s.%s: %w", device, param, err)
	}
	b.logger.Debug("inward", "device", device, "param", param, "attr", ref.String(), "value", local.Any())

	committed, err := b.matter.Get(ref)
	if err != nil {
		return v, nil
	}
	if committed == local {
		return v, nil
	}
	applied, err := ToExternal(committed, m.Cluster, m.Attribute)
	if err != nil {
		b.logger.Warn("remap committed value", "attr", ref.String(), "err", err)
		return v, nil
	}
	b.logger.Debug("inward value transformed", "device", device, "param", param, "requested", v.String(), "applied", applied.String())
	return applied, nil
}

func (b *Bridge) paramBounds(device string, m Mapping) *rainmaker.Bounds {
	if b.rmaker != nil {
		if dev := b.rmaker.DeviceByName(device); dev != nil {
			if p := dev.ParamByName(m.Param); p != nil && p.Bounds() != nil {
				return p.Bounds()
			}
		}
	}
	if m.Fallback != nil {
		return &rainmaker.Bounds{
			Min:  rainmaker.Int(m.Fallback.Min),
			Max:  rainmaker.Int(m.Fallback.Max),
			Step: rainmaker.Int(m.Fallback.Step),
		}
	}
	return nil
}

// WriteCallback is the write callback shared by every synthesized device.
// The parameter is resolved at call time.
func (b *Bridge) WriteCallback(ctx context.Context, dev *rainmaker.Device, p *rainmaker.Param, v rainmaker.Value, wctx rainmaker.WriteContext) (rainmaker.Value, error) {
	b.logger.Info("write request", "device", dev.Name(), "param", p.Name(), "source", wctx.Source.String())
	return b.Inward(ctx, dev.Name(), p.Name(), v)
}
