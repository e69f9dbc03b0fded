package rainmaker

import (
	"context"
	"fmt"
	"sync"
)

// WriteContext describes an incoming write.
type WriteContext struct {
	Source WriteSource
}

// WriteCallback handles writes for every parameter of a device. Returning an
// error rejects the write and leaves the parameter unchanged. A valid
// returned value is what the device actually applied and is stored and
// acknowledged instead of v.
type WriteCallback func(ctx context.Context, dev *Device, p *Param, v Value, wctx WriteContext) (Value, error)

// Device is a named group of parameters.
type Device struct {
	name string
	typ  string
	node *Node

	mu      sync.RWMutex
	params  []*Param
	primary *Param
	writeCB WriteCallback
}

// NewDevice creates a device with no parameters.
func NewDevice(name, typ string) *Device {
	return &Device{name: name, typ: typ}
}

func (d *Device) Name() string { return d.name }
func (d *Device) Type() string { return d.typ }

// AddParam adds p to the device. Names are unique per device.
func (d *Device) AddParam(p *Param) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.params {
		if existing.name == p.name {
			return fmt.Errorf("%w: %s.%s", ErrDuplicate, d.name, p.name)
		}
	}
	p.device = d
	d.params = append(d.params, p)
	return nil
}

// Params returns the parameters in creation order.
func (d *Device) Params() []*Param {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Param(nil), d.params...)
}

// ParamByName returns the named parameter, or nil.
func (d *Device) ParamByName(name string) *Param {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.params {
		if p.name == name {
			return p
		}
	}
	return nil
}

// ParamByType returns the first parameter of the given type, or nil.
func (d *Device) ParamByType(typ string) *Param {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.params {
		if p.typ == typ {
			return p
		}
	}
	return nil
}

// AssignPrimary marks p as the device's primary parameter.
func (d *Device) AssignPrimary(p *Param) error {
	if p == nil || p.device != d {
		return fmt.Errorf("%w: primary param not on device %s", ErrParamNotFound, d.name)
	}
	d.mu.Lock()
	d.primary = p
	d.mu.Unlock()
	return nil
}

// Primary returns the primary parameter, or nil.
func (d *Device) Primary() *Param {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.primary
}

// SetWriteCallback registers the device's write callback, replacing any
// previous one.
func (d *Device) SetWriteCallback(cb WriteCallback) {
	d.mu.Lock()
	d.writeCB = cb
	d.mu.Unlock()
}

func (d *Device) callback() WriteCallback {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.writeCB
}
