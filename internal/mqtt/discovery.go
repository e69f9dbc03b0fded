//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"matter-rainmaker/internal/rainmaker"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/switch/<node>/matter_light_power/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	CommandTemplate   string   `json:"command_template,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	StateOn           string   `json:"state_on,omitempty"`
	StateOff          string   `json:"state_off,omitempty"`
	Min               *float64 `json:"min,omitempty"`
	Max               *float64 `json:"max,omitempty"`
	Step              *float64 `json:"step,omitempty"`
	Device            haDevice `json:"device"`
}

// objectID returns a topic-safe object ID for a device parameter.
func objectID(device, param string) string {
	name := strings.ToLower(device + "_" + param)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}

// buildDiscovery generates one HA entity per parameter of the node: writable
// booleans become switches, writable numbers become number entities and
// everything else a sensor.
func buildDiscovery(node *rainmaker.Node, prefix string) []discoveryMsg {
	id := node.ID()
	info := node.Info()
	haDev := haDevice{
		Identifiers: []string{"rainmaker_" + id},
		Model:       info.Type,
		Name:        info.Name,
		SWVersion:   info.FWVersion,
	}
	state := topicParamsState(id)
	avail := topicStatus(id)
	cmd := topicParamsRemote(id)

	var msgs []discoveryMsg
	for _, dev := range node.Devices() {
		for _, p := range dev.Params() {
			obj := objectID(dev.Name(), p.Name())
			entity := haDiscovery{
				Name:              dev.Name() + " " + p.Name(),
				UniqueID:          id + "_" + obj,
				StateTopic:        state,
				AvailabilityTopic: avail,
				ValueTemplate:     fmt.Sprintf("{{ value_json[%q][%q] }}", dev.Name(), p.Name()),
				Device:            haDev,
			}

			component := "sensor"
			v := p.Value()
			switch {
			case p.IsWritable() && v.Type == rainmaker.TypeBool:
				component = "switch"
				entity.CommandTopic = cmd
				entity.PayloadOn = string(mustJSON(map[string]map[string]bool{dev.Name(): {p.Name(): true}}))
				entity.PayloadOff = string(mustJSON(map[string]map[string]bool{dev.Name(): {p.Name(): false}}))
				entity.StateOn = "True"
				entity.StateOff = "False"
			case p.IsWritable() && (v.Type == rainmaker.TypeInt || v.Type == rainmaker.TypeFloat):
				component = "number"
				entity.CommandTopic = cmd
				filter := "int"
				if v.Type == rainmaker.TypeFloat {
					filter = "float"
				}
				entity.CommandTemplate = fmt.Sprintf("{%q: {%q: {{ value | %s }}}}", dev.Name(), p.Name(), filter)
				if b := p.Bounds(); b != nil {
					entity.Min = floatPtr(b.Min)
					entity.Max = floatPtr(b.Max)
					entity.Step = floatPtr(b.Step)
				}
			}

			msgs = append(msgs, discoveryMsg{
				Topic:   fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, id, obj),
				Payload: mustJSON(entity),
			})
		}
	}
	return msgs
}

func floatPtr(v rainmaker.Value) *float64 {
	f, ok := v.Float64()
	if !ok {
		return nil
	}
	return &f
}
