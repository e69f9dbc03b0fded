package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// InvalidEndpoint is returned by EndpointIDFor for unknown device names.
const InvalidEndpoint uint16 = 0xFFFF

var ErrDuplicateBinding = errors.New("endpoint or device already bound")

// Translator maps endpoints to device names and back.
type Translator struct {
	mu    sync.RWMutex
	names map[uint16]string
	ids   map[string]uint16
}

func NewTranslator() *Translator {
	return &Translator{
		names: make(map[uint16]string),
		ids:   make(map[string]uint16),
	}
}

// Bind associates an endpoint with a device name. Both sides must be unbound.
func (t *Translator) Bind(endpoint uint16, deviceName string) error {
	if endpoint == InvalidEndpoint {
		return fmt.Errorf("bind %q: endpoint 0x%04X is reserved", deviceName, endpoint)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if name, ok := t.names[endpoint]; ok {
		return fmt.Errorf("%w: endpoint %d is %q", ErrDuplicateBinding, endpoint, name)
	}
	if id, ok := t.ids[deviceName]; ok {
		return fmt.Errorf("%w: %q is endpoint %d", ErrDuplicateBinding, deviceName, id)
	}
	t.names[endpoint] = deviceName
	t.ids[deviceName] = endpoint
	return nil
}

// DeviceNameFor returns the device name bound to endpoint.
func (t *Translator) DeviceNameFor(endpoint uint16) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.names[endpoint]
	return name, ok
}

// EndpointIDFor returns the endpoint bound to deviceName, or InvalidEndpoint.
func (t *Translator) EndpointIDFor(deviceName string) uint16 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id, ok := t.ids[deviceName]; ok {
		return id
	}
	return InvalidEndpoint
}
