package bridge

import (
	"context"
	"fmt"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

// Synthesize walks the Matter node and creates one device per bound endpoint
// and one parameter per mapped attribute. Unbound endpoints and unmapped
// attributes are skipped.
func (b *Bridge) Synthesize(ctx context.Context) error {
	if b.matter == nil {
		return fmt.Errorf("synthesize: matter %w", ErrNoNode)
	}
	if b.rmaker == nil {
		return fmt.Errorf("synthesize: rainmaker %w", ErrNoNode)
	}

	for _, ep := range b.matter.Endpoints() {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, ok := b.tr.DeviceNameFor(ep.ID())
		if !ok {
			b.logger.Debug("endpoint skipped", "endpoint", ep.ID())
			continue
		}
		dev := b.synthesizeDevice(ep, name)
		if err := b.rmaker.AddDevice(dev); err != nil {
			return fmt.Errorf("synthesize endpoint %d: %w", ep.ID(), err)
		}
		b.logger.Info("device synthesized", "endpoint", ep.ID(), "device", name, "type", dev.Type(), "params", len(dev.Params()))
	}
	return nil
}

func (b *Bridge) synthesizeDevice(ep *matter.Endpoint, name string) *rainmaker.Device {
	devType := rainmaker.DeviceOther
	if types := ep.DeviceTypes(); len(types) > 0 {
		if t, ok := DeviceTypeFor(types[0]); ok {
			devType = t
		}
	}
	dev := rainmaker.NewDevice(name, devType)
	dev.SetWriteCallback(b.WriteCallback)

	for _, c := range ep.Clusters() {
		for _, a := range c.Attributes() {
			m, ok := Lookup(c.ID(), a.ID())
			if !ok {
				continue
			}
			p := b.synthesizeParam(ep.ID(), m, a)
			if err := dev.AddParam(p); err != nil {
				b.logger.Error("add param", "device", name, "param", m.Param, "err", err)
				continue
			}
			if m.Primary && dev.Primary() == nil {
				_ = dev.AssignPrimary(p)
			}
		}
	}
	return dev
}

func (b *Bridge) synthesizeParam(endpoint uint16, m Mapping, a *matter.Attribute) *rainmaker.Param {
	v, err := ToExternal(a.Value(), m.Cluster, m.Attribute)
	if err != nil {
		b.logger.Error("remap initial value", "endpoint", endpoint, "param", m.Param, "err", err)
	}
	p := rainmaker.NewParam(m.Param, m.ParamType, v, rainmaker.PropRead|rainmaker.PropWrite)
	if m.UIType != "" {
		p.SetUIType(m.UIType)
	}
	if min, max, step, ok := b.boundsFor(m, a); ok {
		p.SetBounds(min, max, step)
	}
	return p
}

// boundsFor prefers the attribute's declared bounds, remapped with step 1,
// and falls back to the mapping's static bounds.
func (b *Bridge) boundsFor(m Mapping, a *matter.Attribute) (min, max, step rainmaker.Value, ok bool) {
	if declared := a.Bounds(); declared != nil {
		lo, errLo := ToExternal(declared.Min, m.Cluster, m.Attribute)
		hi, errHi := ToExternal(declared.Max, m.Cluster, m.Attribute)
		if errLo == nil && errHi == nil {
			// an inverse remap turns the lower bound into the upper one
			lf, _ := lo.Float64()
			hf, _ := hi.Float64()
			if lf > hf {
				lo, hi = hi, lo
			}
			return lo, hi, rainmaker.Int(1), true
		}
		b.logger.Warn("declared bounds not remappable, using fallback", "param", m.Param, "bounds", declared.String())
	}
	if m.Fallback != nil {
		return rainmaker.Int(m.Fallback.Min), rainmaker.Int(m.Fallback.Max), rainmaker.Int(m.Fallback.Step), true
	}
	return rainmaker.Value{}, rainmaker.Value{}, rainmaker.Value{}, false
}
