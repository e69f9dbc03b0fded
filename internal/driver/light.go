// Package driver holds the light driver behind the Matter light endpoint.
// The light is virtual: it keeps its state in memory and logs every change.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"matter-rainmaker/internal/matter"
)

// State is the driver-side state of one light endpoint.
type State struct {
	On          bool   `json:"on"`
	Level       uint8  `json:"level"`
	Hue         uint8  `json:"hue"`
	Saturation  uint8  `json:"saturation"`
	Mireds      uint16 `json:"mireds"`
	Identifying bool   `json:"identifying"`
}

// Light drives light endpoints. It implements matter.Hooks so that every
// accepted attribute change reaches the hardware before it is committed.
type Light struct {
	logger *slog.Logger

	mu     sync.RWMutex
	states map[uint16]*State
	// Toggle acts on this endpoint.
	button uint16
}

func New(logger *slog.Logger) *Light {
	return &Light{
		logger: logger.With("component", "driver"),
		states: make(map[uint16]*State),
		button: 1,
	}
}

// SetButtonEndpoint selects the endpoint the button toggles.
func (l *Light) SetButtonEndpoint(ep uint16) {
	l.mu.Lock()
	l.button = ep
	l.mu.Unlock()
}

// State returns a copy of the endpoint's state.
func (l *Light) State(endpoint uint16) (State, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.states[endpoint]
	if !ok {
		return State{}, false
	}
	return *s, true
}

func (l *Light) PreUpdate(_ context.Context, ref matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	l.apply(ref, v)
	return v, nil
}

func (l *Light) PostUpdate(context.Context, matter.AttributeRef, matter.Value, matter.Origin) {}

// apply pushes one attribute value to the light. Attributes the driver does
// not act on are ignored.
func (l *Light) apply(ref matter.AttributeRef, v matter.Value) bool {
	var set func(s *State)
	switch {
	case ref.Cluster == matter.ClusterOnOff && ref.Attribute == matter.AttrOnOff:
		set = func(s *State) {
			s.On = v.Bool
			l.logger.Info("light power", "endpoint", ref.Endpoint, "on", s.On)
		}
	case ref.Cluster == matter.ClusterLevelControl && ref.Attribute == matter.AttrCurrentLevel:
		set = func(s *State) {
			s.Level = v.Uint8
			l.logger.Info("light brightness", "endpoint", ref.Endpoint, "level", s.Level)
		}
	case ref.Cluster == matter.ClusterColorControl && ref.Attribute == matter.AttrCurrentHue:
		set = func(s *State) {
			s.Hue = v.Uint8
			l.logger.Info("light hue", "endpoint", ref.Endpoint, "hue", s.Hue)
		}
	case ref.Cluster == matter.ClusterColorControl && ref.Attribute == matter.AttrCurrentSaturation:
		set = func(s *State) {
			s.Saturation = v.Uint8
			l.logger.Info("light saturation", "endpoint", ref.Endpoint, "saturation", s.Saturation)
		}
	case ref.Cluster == matter.ClusterColorControl && ref.Attribute == matter.AttrColorTemperatureMireds:
		set = func(s *State) {
			s.Mireds = v.Uint16
			l.logger.Info("light temperature", "endpoint", ref.Endpoint, "mireds", s.Mireds)
		}
	case ref.Cluster == matter.ClusterIdentify && ref.Attribute == matter.AttrIdentifyTime:
		set = func(s *State) {
			s.Identifying = v.Uint16 > 0
			l.logger.Info("light identify", "endpoint", ref.Endpoint, "seconds", v.Uint16)
		}
	default:
		// attributes outside the light clusters, such as the root node id, create no state
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.states[ref.Endpoint]
	if s == nil {
		s = &State{}
		l.states[ref.Endpoint] = s
	}
	set(s)
	return true
}

// SetDefaults pushes the endpoint's current attribute values to the light,
// as done once at startup after the values have been restored.
func (l *Light) SetDefaults(_ context.Context, n *matter.Node, endpoint uint16) error {
	ep := n.Endpoint(endpoint)
	if ep == nil {
		return fmt.Errorf("set defaults: %w: %d", matter.ErrEndpointNotFound, endpoint)
	}
	applied := 0
	for _, c := range ep.Clusters() {
		for _, a := range c.Attributes() {
			ref := matter.AttributeRef{Endpoint: endpoint, Cluster: c.ID(), Attribute: a.ID()}
			if l.apply(ref, a.Value()) {
				applied++
			}
		}
	}
	l.logger.Debug("defaults applied", "endpoint", endpoint, "attributes", applied)
	return nil
}

// Toggle flips OnOff of the button endpoint as a local change.
func (l *Light) Toggle(ctx context.Context, n *matter.Node) error {
	l.mu.RLock()
	ep := l.button
	l.mu.RUnlock()

	ref := matter.AttributeRef{Endpoint: ep, Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}
	cur, err := n.Get(ref)
	if err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	l.logger.Info("toggle button pressed", "endpoint", ep)
	return n.Update(ctx, ref, matter.Bool(!cur.Bool), matter.OriginLocal)
}
