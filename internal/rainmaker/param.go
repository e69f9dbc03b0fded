package rainmaker

import (
	"context"
	"sync"
)

// Param is a named value exposed on a device.
type Param struct {
	name      string
	typ       string
	uiType    string
	valueType ValueType
	props     uint8
	bounds    *Bounds
	device    *Device

	mu      sync.RWMutex
	value   Value
	pending bool
}

// NewParam creates a parameter with an initial value.
func NewParam(name, typ string, v Value, props uint8) *Param {
	return &Param{name: name, typ: typ, value: v, props: props, valueType: v.Type}
}

func (p *Param) Name() string     { return p.name }
func (p *Param) Type() string     { return p.typ }
func (p *Param) UIType() string   { return p.uiType }
func (p *Param) Props() uint8     { return p.props }
func (p *Param) Device() *Device  { return p.device }
func (p *Param) IsWritable() bool { return p.props&PropWrite != 0 }

// ValueType is fixed at creation; Update only accepts values of this type.
func (p *Param) ValueType() ValueType { return p.valueType }

// SetUIType attaches a UI hint.
func (p *Param) SetUIType(ui string) { p.uiType = ui }

// SetBounds attaches (min, max, step) bounds.
func (p *Param) SetBounds(min, max, step Value) {
	p.bounds = &Bounds{Min: min, Max: max, Step: step}
}

// Bounds returns a copy of the bounds, or nil.
func (p *Param) Bounds() *Bounds {
	if p.bounds == nil {
		return nil
	}
	b := *p.bounds
	return &b
}

// Value returns the current value.
func (p *Param) Value() Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Pending reports whether the value still has to be reported.
func (p *Param) Pending() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pending
}

// Update sets the value and queues it for the next ReportPending.
func (p *Param) Update(v Value) error {
	if v.Type != p.valueType {
		return typeMismatch(p, v)
	}
	p.mu.Lock()
	p.value = v
	p.pending = true
	p.mu.Unlock()
	return nil
}

// UpdateAndReport sets the value and reports it right away. The value is
// acknowledged and never left pending, even when the report fails.
func (p *Param) UpdateAndReport(ctx context.Context, v Value) error {
	if v.Type != p.valueType {
		return typeMismatch(p, v)
	}
	p.set(v)
	if p.device == nil || p.device.node == nil {
		return nil
	}
	return p.device.node.report(ctx, map[string]map[string]any{
		p.device.name: {p.name: v},
	})
}

func (p *Param) set(v Value) {
	p.mu.Lock()
	p.value = v
	p.pending = false
	p.mu.Unlock()
}

// takePending clears the pending flag and returns the value if it was set.
func (p *Param) takePending() (Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending {
		return Value{}, false
	}
	p.pending = false
	return p.value, true
}
