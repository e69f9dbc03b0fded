package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/matter/clusters"
	"matter-rainmaker/internal/rainmaker"
)

const lightName = "Matter Light"

type fakeReporter struct {
	reports []map[string]map[string]any
}

func (r *fakeReporter) Report(_ context.Context, params map[string]map[string]any) error {
	r.reports = append(r.reports, params)
	return nil
}

type fixture struct {
	matter *matter.Node
	rmaker *rainmaker.Node
	bridge *Bridge
	rep    *fakeReporter
	light  uint16
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()
	mn, err := matter.NewNode(clusters.NewRegistry(logger), logger)
	if err != nil {
		t.Fatal(err)
	}
	cfg := matter.DefaultLightConfig()
	cfg.HueSaturation = true
	ep, err := matter.CreateColorTemperatureLight(mn, cfg)
	if err != nil {
		t.Fatal(err)
	}

	rep := &fakeReporter{}
	rn := rainmaker.NewNode("node-1", rainmaker.Info{Name: "ESP RainMaker Device", Type: "Lightbulb"}, rep, logger)
	b := New(mn, rn, logger)
	if err := b.BindEndpoint(ep.ID(), lightName); err != nil {
		t.Fatal(err)
	}
	mn.AddHooks(b)
	if err := b.Synthesize(context.Background()); err != nil {
		t.Fatal(err)
	}
	b.SetReady()
	return &fixture{matter: mn, rmaker: rn, bridge: b, rep: rep, light: ep.ID()}
}

func (f *fixture) param(t *testing.T, name string) *rainmaker.Param {
	t.Helper()
	dev := f.rmaker.DeviceByName(lightName)
	if dev == nil {
		t.Fatal("light device missing")
	}
	p := dev.ParamByName(name)
	if p == nil {
		t.Fatalf("param %s missing", name)
	}
	return p
}

func TestMappingIsInjective(t *testing.T) {
	for _, m := range Mappings() {
		name, ok := ParamNameFor(m.Cluster, m.Attribute)
		if !ok || name != m.Param {
			t.Errorf("ParamNameFor(0x%04X, 0x%04X) = %q, %v", m.Cluster, m.Attribute, name, ok)
		}
		c, a, ok := ClusterAndAttributeFor(name)
		if !ok || c != m.Cluster || a != m.Attribute {
			t.Errorf("ClusterAndAttributeFor(%q) = 0x%04X, 0x%04X, %v", name, c, a, ok)
		}
	}
	if len(byParam) != len(mappings) || len(byAttribute) != len(mappings) {
		t.Errorf("index sizes %d/%d, want %d", len(byParam), len(byAttribute), len(mappings))
	}
}

func TestLookupMisses(t *testing.T) {
	if _, ok := ParamNameFor(matter.ClusterRainMaker, matter.AttrRainMakerNodeID); ok {
		t.Error("custom cluster attribute should be unmapped")
	}
	if _, _, ok := ClusterAndAttributeFor("Speed"); ok {
		t.Error("unknown param should be unmapped")
	}
	tr := NewTranslator()
	if got := tr.EndpointIDFor("nobody"); got != InvalidEndpoint {
		t.Errorf("EndpointIDFor = 0x%04X, want 0xFFFF", got)
	}
	if _, ok := tr.DeviceNameFor(3); ok {
		t.Error("DeviceNameFor on empty translator")
	}
}

func TestTranslatorBind(t *testing.T) {
	tr := NewTranslator()
	if err := tr.Bind(1, lightName); err != nil {
		t.Fatal(err)
	}
	if err := tr.Bind(1, "Other"); !errors.Is(err, ErrDuplicateBinding) {
		t.Errorf("rebind endpoint err = %v", err)
	}
	if err := tr.Bind(2, lightName); !errors.Is(err, ErrDuplicateBinding) {
		t.Errorf("rebind name err = %v", err)
	}
	if err := tr.Bind(InvalidEndpoint, "X"); err == nil {
		t.Error("binding the sentinel endpoint should fail")
	}
	if id := tr.EndpointIDFor(lightName); id != 1 {
		t.Errorf("EndpointIDFor = %d, want 1", id)
	}
}

func TestDeviceTypeFor(t *testing.T) {
	got, ok := DeviceTypeFor(matter.DeviceTypeColorTemperatureLight)
	if !ok || got != rainmaker.DeviceLightbulb {
		t.Errorf("DeviceTypeFor(CT light) = %q, %v", got, ok)
	}
	if _, ok := DeviceTypeFor(matter.DeviceTypeRootNode); ok {
		t.Error("root node should have no device type")
	}
}

func TestBrightnessRoundTrip(t *testing.T) {
	for x := int32(0); x <= StandardBrightness; x++ {
		local, err := ToLocal(rainmaker.Int(x), matter.ClusterLevelControl, matter.AttrCurrentLevel)
		if err != nil {
			t.Fatalf("ToLocal(%d): %v", x, err)
		}
		ext, err := ToExternal(local, matter.ClusterLevelControl, matter.AttrCurrentLevel)
		if err != nil {
			t.Fatalf("ToExternal(%v): %v", local, err)
		}
		if ext != rainmaker.Int(x) {
			t.Errorf("brightness %d -> %v -> %v", x, local, ext)
		}
	}

	for v := 0; v <= MatterBrightness; v++ {
		ext, err := ToExternal(matter.Uint8(uint8(v)), matter.ClusterLevelControl, matter.AttrCurrentLevel)
		if err != nil {
			t.Fatal(err)
		}
		back, err := ToLocal(ext, matter.ClusterLevelControl, matter.AttrCurrentLevel)
		if err != nil {
			t.Fatal(err)
		}
		if d := int(back.Uint8) - v; d < -1 || d > 1 {
			t.Errorf("level %d -> %v -> %d, off by %d", v, ext, back.Uint8, d)
		}
	}

	ext, _ := ToExternal(matter.Uint8(254), matter.ClusterLevelControl, matter.AttrCurrentLevel)
	back, _ := ToLocal(ext, matter.ClusterLevelControl, matter.AttrCurrentLevel)
	if ext != rainmaker.Int(100) || back != matter.Uint8(254) {
		t.Errorf("254 -> %v -> %v, want 100 -> 254", ext, back)
	}
}

func TestRemapValues(t *testing.T) {
	tests := []struct {
		name    string
		cluster uint32
		attr    uint32
		local   matter.Value
		ext     rainmaker.Value
	}{
		{"power", matter.ClusterOnOff, matter.AttrOnOff, matter.Bool(true), rainmaker.Bool(true)},
		{"hue max", matter.ClusterColorControl, matter.AttrCurrentHue, matter.Uint8(254), rainmaker.Int(360)},
		{"hue mid", matter.ClusterColorControl, matter.AttrCurrentHue, matter.Uint8(127), rainmaker.Int(180)},
		{"saturation", matter.ClusterColorControl, matter.AttrCurrentSaturation, matter.Uint8(127), rainmaker.Int(50)},
		{"cct", matter.ClusterColorControl, matter.AttrColorTemperatureMireds, matter.Uint16(250), rainmaker.Int(4000)},
		{"unmapped u16", matter.ClusterIdentify, matter.AttrIdentifyTime, matter.Uint16(7), rainmaker.Int(7)},
		{"unmapped i16", matter.ClusterIdentify, 0x7777, matter.Int16(-7), rainmaker.Int(-7)},
		{"unmapped float", matter.ClusterIdentify, 0x7777, matter.Float(0.5), rainmaker.Float(0.5)},
	}
	for _, tt := range tests {
		got, err := ToExternal(tt.local, tt.cluster, tt.attr)
		if err != nil {
			t.Errorf("%s: ToExternal: %v", tt.name, err)
			continue
		}
		if got != tt.ext {
			t.Errorf("%s: ToExternal = %v, want %v", tt.name, got, tt.ext)
		}
	}

	local, err := ToLocal(rainmaker.Int(6500), matter.ClusterColorControl, matter.AttrColorTemperatureMireds)
	if err != nil || local != matter.Uint16(154) {
		t.Errorf("ToLocal(6500K) = %v, %v, want 154 mireds", local, err)
	}
}

func TestRemapErrors(t *testing.T) {
	got, err := ToExternal(matter.String("x"), matter.ClusterIdentify, 0x7777)
	if !errors.Is(err, ErrUnsupportedType) || got != rainmaker.Int(0) {
		t.Errorf("string ToExternal = %v, %v", got, err)
	}
	if _, err := ToLocal(rainmaker.String("x"), matter.ClusterIdentify, 0x7777); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("string ToLocal err = %v", err)
	}
	if _, err := ToLocal(rainmaker.Int(150), matter.ClusterLevelControl, matter.AttrCurrentLevel); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("brightness 150 err = %v, want ErrOutOfRange", err)
	}
	if _, err := ToLocal(rainmaker.Int(-5), matter.ClusterLevelControl, matter.AttrCurrentLevel); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("brightness -5 err = %v, want ErrOutOfRange", err)
	}
	if _, err := ToLocal(rainmaker.Int(0), matter.ClusterColorControl, matter.AttrColorTemperatureMireds); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("cct 0 err = %v, want ErrOutOfRange", err)
	}
	if _, err := ToLocal(rainmaker.Int(10), matter.ClusterColorControl, matter.AttrColorTemperatureMireds); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("cct 10K err = %v, want ErrOutOfRange (overflows uint16)", err)
	}
	if _, err := ToLocal(rainmaker.Bool(true), matter.ClusterLevelControl, matter.AttrCurrentLevel); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("bool brightness err = %v", err)
	}
}

func TestToLocalKeepsNativeWidth(t *testing.T) {
	if v, err := ToLocal(rainmaker.Bool(true), matter.ClusterOnOff, matter.AttrOnOff); err != nil || v != matter.Bool(true) {
		t.Errorf("power = %v, %v", v, err)
	}
	if _, err := ToLocal(rainmaker.Int(1), matter.ClusterOnOff, matter.AttrOnOff); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("int power err = %v, want ErrUnsupportedType", err)
	}

	// unremapped integers narrow to the mapping's type
	m := Mapping{Cluster: 0xFC00, Attribute: 1, LocalType: matter.TypeUint16}
	if v, err := m.localValue(rainmaker.Int(300)); err != nil || v != matter.Uint16(300) {
		t.Errorf("localValue(300) = %v, %v, want uint16 300", v, err)
	}
	if _, err := m.localValue(rainmaker.Int(70000)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("localValue(70000) err = %v, want ErrOutOfRange", err)
	}
	m.LocalType = matter.TypeInt16
	if v, err := m.localValue(rainmaker.Int(-40)); err != nil || v != matter.Int16(-40) {
		t.Errorf("localValue(-40) = %v, %v, want int16 -40", v, err)
	}
}

func TestSynthesizeLight(t *testing.T) {
	f := newFixture(t)

	devs := f.rmaker.Devices()
	if len(devs) != 1 {
		t.Fatalf("devices = %d, want 1 (root endpoint skipped)", len(devs))
	}
	dev := devs[0]
	if dev.Name() != lightName || dev.Type() != rainmaker.DeviceLightbulb {
		t.Errorf("device = %s/%s", dev.Name(), dev.Type())
	}
	if len(dev.Params()) != 5 {
		t.Fatalf("params = %d, want 5", len(dev.Params()))
	}
	if dev.Primary() == nil || dev.Primary().Name() != rainmaker.DefPowerName {
		t.Error("Power should be primary")
	}

	tests := []struct {
		param string
		ui    string
		min   int32
		max   int32
		step  int32
		bound bool
	}{
		{rainmaker.DefPowerName, rainmaker.UIToggle, 0, 0, 0, false},
		{rainmaker.DefBrightnessName, rainmaker.UISlider, 0, 100, 1, true},
		{rainmaker.DefHueName, rainmaker.UIHueSlider, 0, 360, 1, true},
		{rainmaker.DefSaturationName, rainmaker.UISlider, 0, 100, 1, true},
		{rainmaker.DefCCTName, rainmaker.UISlider, 2700, 6500, 100, true},
	}
	for _, tt := range tests {
		p := f.param(t, tt.param)
		if p.UIType() != tt.ui {
			t.Errorf("%s ui = %q, want %q", tt.param, p.UIType(), tt.ui)
		}
		b := p.Bounds()
		if !tt.bound {
			if b != nil {
				t.Errorf("%s has bounds %+v", tt.param, b)
			}
			continue
		}
		if b == nil {
			t.Errorf("%s has no bounds", tt.param)
			continue
		}
		if b.Min != rainmaker.Int(tt.min) || b.Max != rainmaker.Int(tt.max) || b.Step != rainmaker.Int(tt.step) {
			t.Errorf("%s bounds = [%v,%v,%v], want [%d,%d,%d]", tt.param, b.Min, b.Max, b.Step, tt.min, tt.max, tt.step)
		}
	}

	if v := f.param(t, rainmaker.DefBrightnessName).Value(); v != rainmaker.Int(25) {
		t.Errorf("initial brightness = %v, want 25 (level 64)", v)
	}
	if v := f.param(t, rainmaker.DefCCTName).Value(); v != rainmaker.Int(4000) {
		t.Errorf("initial CCT = %v, want 4000", v)
	}
}

func TestSynthesizeDeclaredInverseBoundsAreOrdered(t *testing.T) {
	logger := testLogger()
	mn, err := matter.NewNode(clusters.NewRegistry(logger), logger)
	if err != nil {
		t.Fatal(err)
	}
	ep, err := mn.CreateEndpoint(matter.DeviceTypeColorTemperatureLight, matter.ClusterColorControl)
	if err != nil {
		t.Fatal(err)
	}
	ep.Cluster(matter.ClusterColorControl).AddAttribute(matter.AttributeDef{
		ID: matter.AttrColorTemperatureMireds, Type: matter.TypeUint16, Default: matter.Uint16(250),
		Bounds: &matter.Bounds{Min: matter.Uint16(153), Max: matter.Uint16(370)},
	})

	rn := rainmaker.NewNode("n", rainmaker.Info{}, nil, logger)
	b := New(mn, rn, logger)
	if err := b.BindEndpoint(ep.ID(), lightName); err != nil {
		t.Fatal(err)
	}
	if err := b.Synthesize(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := rn.DeviceByName(lightName).ParamByName(rainmaker.DefCCTName)
	bnd := p.Bounds()
	if bnd == nil {
		t.Fatal("no bounds")
	}
	if bnd.Min != rainmaker.Int(2703) || bnd.Max != rainmaker.Int(6536) || bnd.Step != rainmaker.Int(1) {
		t.Errorf("bounds = [%v,%v,%v], want [2703,6536,1]", bnd.Min, bnd.Max, bnd.Step)
	}
}

func TestSynthesizeSkipsUnmappedCluster(t *testing.T) {
	logger := testLogger()
	mn, err := matter.NewNode(clusters.NewRegistry(logger), logger)
	if err != nil {
		t.Fatal(err)
	}
	ep, err := mn.CreateEndpoint(matter.DeviceTypeOnOffLight, matter.ClusterRainMaker, matter.ClusterIdentify)
	if err != nil {
		t.Fatal(err)
	}
	rn := rainmaker.NewNode("n", rainmaker.Info{}, nil, logger)
	b := New(mn, rn, logger)
	if err := b.BindEndpoint(ep.ID(), "Custom"); err != nil {
		t.Fatal(err)
	}
	if err := b.Synthesize(context.Background()); err != nil {
		t.Fatal(err)
	}
	dev := rn.DeviceByName("Custom")
	if dev == nil {
		t.Fatal("device missing")
	}
	if n := len(dev.Params()); n != 0 {
		t.Errorf("params = %d, want 0", n)
	}
}

func TestSynthesizeMissingNode(t *testing.T) {
	b := New(nil, rainmaker.NewNode("n", rainmaker.Info{}, nil, testLogger()), testLogger())
	if err := b.Synthesize(context.Background()); !errors.Is(err, ErrNoNode) {
		t.Errorf("err = %v, want ErrNoNode", err)
	}
	mn, _ := matter.NewNode(clusters.NewRegistry(testLogger()), testLogger())
	b = New(mn, nil, testLogger())
	if err := b.Synthesize(context.Background()); !errors.Is(err, ErrNoNode) {
		t.Errorf("err = %v, want ErrNoNode", err)
	}
}

func TestOutwardLocalChange(t *testing.T) {
	f := newFixture(t)
	ref := matter.AttributeRef{Endpoint: f.light, Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}

	if err := f.matter.Update(context.Background(), ref, matter.Bool(false), matter.OriginLocal); err != nil {
		t.Fatal(err)
	}
	p := f.param(t, rainmaker.DefPowerName)
	if p.Value() != rainmaker.Bool(false) {
		t.Errorf("Power = %v, want false", p.Value())
	}
	if p.Pending() {
		t.Error("Power left pending after outward update")
	}
	if len(f.rep.reports) != 1 || f.rep.reports[0][lightName][rainmaker.DefPowerName] != rainmaker.Bool(false) {
		t.Errorf("reports = %v", f.rep.reports)
	}
}

func TestOutwardUnmappedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bridge.Outward(ctx, matter.AttributeRef{Endpoint: 42, Cluster: matter.ClusterOnOff}, matter.Bool(true)); err != nil {
		t.Errorf("unknown endpoint: %v", err)
	}
	ref := matter.AttributeRef{Endpoint: f.light, Cluster: matter.ClusterIdentify, Attribute: matter.AttrIdentifyTime}
	if err := f.matter.Update(ctx, ref, matter.Uint16(5), matter.OriginLocal); err != nil {
		t.Fatal(err)
	}
	if len(f.rep.reports) != 0 {
		t.Errorf("reports = %v, want none", f.rep.reports)
	}
}

func TestNotReadyDoesNotPropagate(t *testing.T) {
	f := newFixture(t)
	f.bridge.ready.Store(false)
	ref := matter.AttributeRef{Endpoint: f.light, Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}
	if err := f.matter.Update(context.Background(), ref, matter.Bool(false), matter.OriginLocal); err != nil {
		t.Fatal(err)
	}
	if p := f.param(t, rainmaker.DefPowerName); p.Value() != rainmaker.Bool(true) {
		t.Errorf("Power = %v before ready, want unchanged", p.Value())
	}
}

func TestInwardWrite(t *testing.T) {
	f := newFixture(t)
	err := f.rmaker.HandleWrite(context.Background(), map[string]map[string]any{
		lightName: {rainmaker.DefBrightnessName: float64(50)},
	}, rainmaker.SourceCloud)
	if err != nil {
		t.Fatal(err)
	}
	ref := matter.AttributeRef{Endpoint: f.light, Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}
	if got, _ := f.matter.Get(ref); got != matter.Uint8(127) {
		t.Errorf("CurrentLevel = %v, want 127", got)
	}
	// one acknowledgement from HandleWrite, no echo from the post hook
	if len(f.rep.reports) != 1 {
		t.Errorf("reports = %v, want exactly one", f.rep.reports)
	}
}

func TestInwardUnmappedParam(t *testing.T) {
	f := newFixture(t)
	before := snapshot(f.matter)

	_, err := f.bridge.Inward(context.Background(), lightName, "Speed", rainmaker.Int(3))
	if !errors.Is(err, ErrUnmappedParam) {
		t.Errorf("err = %v, want ErrUnmappedParam", err)
	}
	_, err = f.bridge.Inward(context.Background(), "Ghost", rainmaker.DefPowerName, rainmaker.Bool(true))
	if !errors.Is(err, ErrUnmappedParam) {
		t.Errorf("err = %v, want ErrUnmappedParam", err)
	}
	if after := snapshot(f.matter); !equalSnapshots(before, after) {
		t.Error("rejected write mutated the node")
	}
}

func TestInwardOutOfRange(t *testing.T) {
	f := newFixture(t)
	before := snapshot(f.matter)
	_, err := f.bridge.Inward(context.Background(), lightName, rainmaker.DefBrightnessName, rainmaker.Int(101))
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	if after := snapshot(f.matter); !equalSnapshots(before, after) {
		t.Error("rejected write mutated the node")
	}
}

func snapshot(n *matter.Node) map[matter.AttributeRef]matter.Value {
	out := make(map[matter.AttributeRef]matter.Value)
	for _, ep := range n.Endpoints() {
		for _, c := range ep.Clusters() {
			for _, a := range c.Attributes() {
				out[matter.AttributeRef{Endpoint: ep.ID(), Cluster: c.ID(), Attribute: a.ID()}] = a.Value()
			}
		}
	}
	return out
}

func equalSnapshots(a, b map[matter.AttributeRef]matter.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// capLevel limits CurrentLevel to max before it is committed.
type capLevel struct{ max uint8 }

func (h capLevel) PreUpdate(_ context.Context, ref matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	if ref.Cluster == matter.ClusterLevelControl && ref.Attribute == matter.AttrCurrentLevel && v.Uint8 > h.max {
		return matter.Uint8(h.max), nil
	}
	return v, nil
}

func (capLevel) PostUpdate(context.Context, matter.AttributeRef, matter.Value, matter.Origin) {}

func TestInwardReturnsTransformedValue(t *testing.T) {
	f := newFixture(t)
	f.matter.AddHooks(capLevel{max: 127})

	applied, err := f.bridge.Inward(context.Background(), lightName, rainmaker.DefBrightnessName, rainmaker.Int(100))
	if err != nil {
		t.Fatal(err)
	}
	if applied != rainmaker.Int(50) {
		t.Errorf("applied = %v, want 50", applied)
	}

	applied, err = f.bridge.Inward(context.Background(), lightName, rainmaker.DefBrightnessName, rainmaker.Int(20))
	if err != nil {
		t.Fatal(err)
	}
	if applied != rainmaker.Int(20) {
		t.Errorf("untransformed applied = %v, want 20", applied)
	}
}

func TestHandleWriteAcknowledgesTransformedValue(t *testing.T) {
	f := newFixture(t)
	f.matter.AddHooks(capLevel{max: 127})

	err := f.rmaker.HandleWrite(context.Background(), map[string]map[string]any{
		lightName: {rainmaker.DefBrightnessName: float64(100)},
	}, rainmaker.SourceCloud)
	if err != nil {
		t.Fatal(err)
	}
	ref := matter.AttributeRef{Endpoint: f.light, Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel}
	if got, _ := f.matter.Get(ref); got != matter.Uint8(127) {
		t.Fatalf("CurrentLevel = %v, want 127", got)
	}
	if p := f.param(t, rainmaker.DefBrightnessName); p.Value() != rainmaker.Int(50) {
		t.Errorf("Brightness = %v, want 50 to match the light", p.Value())
	}
	if len(f.rep.reports) != 1 || f.rep.reports[0][lightName][rainmaker.DefBrightnessName] != rainmaker.Int(50) {
		t.Errorf("reports = %v, want one ack of 50", f.rep.reports)
	}
}
