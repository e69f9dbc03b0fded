package driver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/matter/clusters"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type originHooks struct{ origins []matter.Origin }

func (h *originHooks) PreUpdate(_ context.Context, _ matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	return v, nil
}

func (h *originHooks) PostUpdate(_ context.Context, _ matter.AttributeRef, _ matter.Value, o matter.Origin) {
	h.origins = append(h.origins, o)
}

func newNode(t *testing.T) (*matter.Node, uint16) {
	t.Helper()
	n, err := matter.NewNode(clusters.NewRegistry(testLogger()), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	cfg := matter.DefaultLightConfig()
	cfg.HueSaturation = true
	cfg.CurrentHue = 30
	ep, err := matter.CreateColorTemperatureLight(n, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return n, ep.ID()
}

func TestSetDefaults(t *testing.T) {
	n, ep := newNode(t)
	l := New(testLogger())
	if err := l.SetDefaults(context.Background(), n, ep); err != nil {
		t.Fatal(err)
	}
	s, ok := l.State(ep)
	if !ok {
		t.Fatal("no state after SetDefaults")
	}
	want := State{On: true, Level: 64, Hue: 30, Mireds: 250}
	if s != want {
		t.Errorf("state = %+v, want %+v", s, want)
	}

	err := l.SetDefaults(context.Background(), n, 42)
	if !errors.Is(err, matter.ErrEndpointNotFound) {
		t.Errorf("err = %v, want ErrEndpointNotFound", err)
	}
}

func TestPreUpdateAppliesAndPassesThrough(t *testing.T) {
	n, ep := newNode(t)
	l := New(testLogger())
	n.AddHooks(l)

	ref := matter.AttributeRef{Endpoint: ep, Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}
	if err := n.Update(context.Background(), ref, matter.Uint8(180), matter.OriginExternal); err != nil {
		t.Fatal(err)
	}
	if s, _ := l.State(ep); s.Level != 180 {
		t.Errorf("driver level = %d, want 180", s.Level)
	}
	if v, _ := n.Get(ref); v != matter.Uint8(180) {
		t.Errorf("attribute = %v, want 180", v)
	}
}

func TestToggle(t *testing.T) {
	n, ep := newNode(t)
	l := New(testLogger())
	h := &originHooks{}
	n.AddHooks(l)
	n.AddHooks(h)

	if err := l.Toggle(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	ref := matter.AttributeRef{Endpoint: ep, Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}
	if v, _ := n.Get(ref); v != matter.Bool(false) {
		t.Errorf("onoff = %v, want false", v)
	}
	if s, _ := l.State(ep); s.On {
		t.Error("driver still on after toggle")
	}
	if len(h.origins) != 1 || h.origins[0] != matter.OriginLocal {
		t.Errorf("origins = %v, want [local]", h.origins)
	}

	l.SetButtonEndpoint(9)
	if err := l.Toggle(context.Background(), n); !errors.Is(err, matter.ErrEndpointNotFound) {
		t.Errorf("err = %v, want ErrEndpointNotFound", err)
	}
}

func TestRootEndpointHasNoState(t *testing.T) {
	n, ep := newNode(t)
	l := New(testLogger())
	n.AddHooks(l)

	root := matter.AttributeRef{Endpoint: 0, Cluster: matter.ClusterRainMaker, Attribute: matter.AttrRainMakerNodeID}
	if err := n.Update(context.Background(), root, matter.String("node-1"), matter.OriginLocal); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.State(0); ok {
		t.Error("root endpoint tracked after node id write")
	}
	if err := l.SetDefaults(context.Background(), n, 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.State(0); ok {
		t.Error("root endpoint tracked after SetDefaults")
	}
	if _, ok := l.State(ep); ok {
		t.Error("light endpoint tracked before any light attribute was applied")
	}
}
