package matter_test

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

func newLight(t *testing.T, hs bool) (*matter.Node, *matter.Endpoint) {
	t.Helper()
	n, err := matter.NewNode(clusters.NewRegistry(testLogger()), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	cfg := matter.DefaultLightConfig()
	cfg.HueSaturation = hs
	ep, err := matter.CreateColorTemperatureLight(n, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return n, ep
}

type recordingHooks struct {
	pre, post []matter.AttributeRef
	origins   []matter.Origin
	veto      error
	replace   matter.Value
}

func (h *recordingHooks) PreUpdate(_ context.Context, ref matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	h.pre = append(h.pre, ref)
	if h.veto != nil {
		return matter.Invalid(), h.veto
	}
	return h.replace, nil
}

func (h *recordingHooks) PostUpdate(_ context.Context, ref matter.AttributeRef, _ matter.Value, origin matter.Origin) {
	h.post = append(h.post, ref)
	h.origins = append(h.origins, origin)
}

func TestLightEndpointLayout(t *testing.T) {
	n, ep := newLight(t, true)

	if ep.ID() != 1 {
		t.Errorf("light endpoint = %d, want 1", ep.ID())
	}
	if got := ep.DeviceTypes(); len(got) != 1 || got[0] != matter.DeviceTypeColorTemperatureLight {
		t.Errorf("device types = %v", got)
	}
	if len(n.Endpoints()) != 2 {
		t.Fatalf("endpoints = %d, want root + light", len(n.Endpoints()))
	}
	root := n.Endpoint(0)
	if root == nil || root.Cluster(matter.ClusterRainMaker) == nil {
		t.Error("root endpoint missing RainMaker cluster")
	}

	var ids []uint32
	for _, c := range ep.Clusters() {
		ids = append(ids, c.ID())
	}
	want := []uint32{matter.ClusterIdentify, matter.ClusterOnOff, matter.ClusterLevelControl, matter.ClusterColorControl}
	if len(ids) != len(want) {
		t.Fatalf("clusters = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("cluster[%d] = 0x%04X, want 0x%04X", i, ids[i], want[i])
		}
	}

	cc := ep.Cluster(matter.ClusterColorControl)
	for _, id := range []uint32{matter.AttrCurrentHue, matter.AttrCurrentSaturation, matter.AttrColorTemperatureMireds} {
		if cc.Attribute(id) == nil {
			t.Errorf("ColorControl attribute 0x%04X missing", id)
		}
	}
	mode := cc.Attribute(matter.AttrColorMode).Value()
	if mode != matter.Uint8(matter.ColorModeColorTemperature) {
		t.Errorf("color mode = %v, want color temperature", mode)
	}
}

func TestLightWithoutHueSaturation(t *testing.T) {
	_, ep := newLight(t, false)
	cc := ep.Cluster(matter.ClusterColorControl)
	if cc.Attribute(matter.AttrCurrentHue) != nil {
		t.Error("hue present without the hue/saturation feature")
	}
	if err := matter.AddHueSaturation(cc, matter.LightConfig{CurrentHue: 10, CurrentSaturation: 20}); err != nil {
		t.Fatal(err)
	}
	if v := cc.Attribute(matter.AttrCurrentHue).Value(); v != matter.Uint8(10) {
		t.Errorf("hue = %v, want 10", v)
	}
	if err := matter.AddHueSaturation(ep.Cluster(matter.ClusterOnOff), matter.LightConfig{}); err == nil {
		t.Error("expected error adding hue/saturation to OnOff")
	}
}

func TestUpdateRunsHooksInOrder(t *testing.T) {
	n, ep := newLight(t, false)
	h := &recordingHooks{}
	n.AddHooks(h)

	ref := matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}
	if err := n.Update(context.Background(), ref, matter.Bool(false), matter.OriginExternal); err != nil {
		t.Fatal(err)
	}
	if len(h.pre) != 1 || len(h.post) != 1 {
		t.Fatalf("pre=%d post=%d, want 1 each", len(h.pre), len(h.post))
	}
	if h.origins[0] != matter.OriginExternal {
		t.Errorf("origin = %s, want external", h.origins[0])
	}
	got, err := n.Get(ref)
	if err != nil {
		t.Fatal(err)
	}
	if got != matter.Bool(false) {
		t.Errorf("value = %v, want false", got)
	}
}

func TestUpdateVeto(t *testing.T) {
	n, ep := newLight(t, false)
	h := &recordingHooks{veto: errors.New("locked")}
	n.AddHooks(h)

	ref := matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}
	before, _ := n.Get(ref)
	err := n.Update(context.Background(), ref, matter.Uint8(200), matter.OriginLocal)
	if !errors.Is(err, matter.ErrVetoed) {
		t.Fatalf("err = %v, want ErrVetoed", err)
	}
	after, _ := n.Get(ref)
	if after != before {
		t.Errorf("value changed after veto: %v -> %v", before, after)
	}
	if len(h.post) != 0 {
		t.Error("post hook ran after veto")
	}
}

func TestUpdateTransform(t *testing.T) {
	n, ep := newLight(t, false)
	n.AddHooks(&recordingHooks{replace: matter.Uint8(100)})

	ref := matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}
	if err := n.Update(context.Background(), ref, matter.Uint8(200), matter.OriginLocal); err != nil {
		t.Fatal(err)
	}
	if got, _ := n.Get(ref); got != matter.Uint8(100) {
		t.Errorf("value = %v, want transformed 100", got)
	}
}

func TestUpdateTransformWrongType(t *testing.T) {
	n, ep := newLight(t, false)
	n.AddHooks(&recordingHooks{replace: matter.Bool(true)})

	ref := matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}
	err := n.Update(context.Background(), ref, matter.Uint8(200), matter.OriginLocal)
	if !errors.Is(err, matter.ErrInvalidType) {
		t.Errorf("err = %v, want ErrInvalidType", err)
	}
}

func TestUpdateErrors(t *testing.T) {
	n, ep := newLight(t, false)
	ctx := context.Background()

	tests := []struct {
		name   string
		ref    matter.AttributeRef
		v      matter.Value
		want   error
		status matter.Status
	}{
		{"endpoint", matter.AttributeRef{Endpoint: 9, Cluster: matter.ClusterOnOff}, matter.Bool(true), matter.ErrEndpointNotFound, matter.StatusUnsupportedEndpoint},
		{"cluster", matter.AttributeRef{Endpoint: ep.ID(), Cluster: 0x0402}, matter.Bool(true), matter.ErrClusterNotFound, matter.StatusUnsupportedCluster},
		{"attribute", matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterOnOff, Attribute: 0x0042}, matter.Bool(true), matter.ErrAttributeNotFound, matter.StatusUnsupportedAttribute},
		{"type", matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}, matter.Uint8(1), matter.ErrInvalidType, matter.StatusInvalidDataType},
		{"bounds", matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}, matter.Uint8(255), matter.ErrConstraint, matter.StatusConstraintError},
	}
	for _, tt := range tests {
		err := n.Update(ctx, tt.ref, tt.v, matter.OriginLocal)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		if s := matter.StatusFor(err); s != tt.status {
			t.Errorf("%s: status = %s, want %s", tt.name, s, tt.status)
		}
	}
	if s := matter.StatusFor(nil); s != matter.StatusSuccess {
		t.Errorf("StatusFor(nil) = %s", s)
	}
}

type panickyHooks struct{}

func (panickyHooks) PreUpdate(_ context.Context, _ matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	return v, nil
}

func (panickyHooks) PostUpdate(context.Context, matter.AttributeRef, matter.Value, matter.Origin) {
	panic("boom")
}

func TestPostHookPanicDoesNotFailCommit(t *testing.T) {
	n, ep := newLight(t, false)
	n.AddHooks(panickyHooks{})
	after := &recordingHooks{}
	n.AddHooks(after)

	ref := matter.AttributeRef{Endpoint: ep.ID(), Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}
	if err := n.Update(context.Background(), ref, matter.Bool(false), matter.OriginLocal); err != nil {
		t.Fatal(err)
	}
	if len(after.post) != 1 {
		t.Error("later post hook skipped after panic")
	}
}
