package matter

import "fmt"

// LightConfig holds the initial state of a light endpoint.
type LightConfig struct {
	OnOff                  bool
	CurrentLevel           uint8
	ColorTemperatureMireds uint16
	// HueSaturation enables the hue/saturation feature on ColorControl.
	HueSaturation     bool
	CurrentHue        uint8
	CurrentSaturation uint8
}

// DefaultLightConfig returns the power-on state of a new light.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		OnOff:                  true,
		CurrentLevel:           64,
		ColorTemperatureMireds: 250,
	}
}

// CreateColorTemperatureLight adds a color temperature light endpoint with
// OnOff, LevelControl, ColorControl and Identify, the color mode set to color
// temperature. The clusters must be registered in the node's registry.
func CreateColorTemperatureLight(n *Node, cfg LightConfig) (*Endpoint, error) {
	ep, err := n.CreateEndpoint(DeviceTypeColorTemperatureLight,
		ClusterIdentify, ClusterOnOff, ClusterLevelControl, ClusterColorControl)
	if err != nil {
		return nil, fmt.Errorf("create light endpoint: %w", err)
	}
	cc := ep.Cluster(ClusterColorControl)
	cc.EnableFeature(FeatureColorTemperature)

	initial := []struct {
		cluster, attr uint32
		v             Value
	}{
		{ClusterOnOff, AttrOnOff, Bool(cfg.OnOff)},
		{ClusterLevelControl, AttrCurrentLevel, Uint8(cfg.CurrentLevel)},
		{ClusterColorControl, AttrColorTemperatureMireds, Uint16(cfg.ColorTemperatureMireds)},
		{ClusterColorControl, AttrColorMode, Uint8(ColorModeColorTemperature)},
	}
	for _, in := range initial {
		if err := initAttribute(ep, in.cluster, in.attr, in.v); err != nil {
			return nil, err
		}
	}

	if cfg.HueSaturation {
		if err := AddHueSaturation(cc, cfg); err != nil {
			return nil, err
		}
	}
	return ep, nil
}

// AddHueSaturation enables the hue/saturation feature on a ColorControl
// cluster and seeds the current hue and saturation.
func AddHueSaturation(cc *Cluster, cfg LightConfig) error {
	if cc == nil || cc.ID() != ClusterColorControl {
		return fmt.Errorf("%w: hue/saturation needs ColorControl", ErrClusterNotFound)
	}
	cc.EnableFeature(FeatureHueSaturation)
	for _, in := range []struct {
		attr uint32
		v    Value
	}{
		{AttrCurrentHue, Uint8(cfg.CurrentHue)},
		{AttrCurrentSaturation, Uint8(cfg.CurrentSaturation)},
	} {
		a := cc.Attribute(in.attr)
		if a == nil {
			return fmt.Errorf("%w: 0x%04X/0x%04X not defined", ErrAttributeNotFound, cc.ID(), in.attr)
		}
		if err := a.check(AttributeRef{Cluster: cc.ID(), Attribute: in.attr}, in.v); err != nil {
			return err
		}
		a.set(in.v)
	}
	return nil
}

// initAttribute seeds a value without running hooks, as attribute creation does.
func initAttribute(ep *Endpoint, cluster, attr uint32, v Value) error {
	c := ep.Cluster(cluster)
	if c == nil {
		return fmt.Errorf("%w: 0x%04X on endpoint %d", ErrClusterNotFound, cluster, ep.ID())
	}
	a := c.Attribute(attr)
	if a == nil {
		return fmt.Errorf("%w: %d/0x%04X/0x%04X", ErrAttributeNotFound, ep.ID(), cluster, attr)
	}
	ref := AttributeRef{Endpoint: ep.ID(), Cluster: cluster, Attribute: attr}
	if err := a.check(ref, v); err != nil {
		return err
	}
	a.set(v)
	return nil
}
