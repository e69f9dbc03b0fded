//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is an embedded MQTT broker for setups without an external one.
type Broker struct {
	server *mochi.Server
	addr   string
	logger *slog.Logger
}

// NewBroker starts a broker accepting every client on addr.
func NewBroker(addr string, logger *slog.Logger) (*Broker, error) {
	logger = logger.With("component", "broker")
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       logger,
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("broker auth hook: %w", err)
	}
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("broker listener %s: %w", addr, err)
	}
	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("broker serve: %w", err)
	}
	logger.Info("embedded MQTT broker listening", "addr", addr)
	return &Broker{server: server, addr: addr, logger: logger}, nil
}

// URL returns the broker address in the form expected by Config.Broker.
func (b *Broker) URL() string { return "tcp://" + b.addr }

// Publish publishes from the broker's inline client.
func (b *Broker) Publish(topic string, payload []byte, retain bool) error {
	return b.server.Publish(topic, payload, retain, 0)
}

// Subscribe delivers messages matching filter to fn through the inline client.
func (b *Broker) Subscribe(filter string, id int, fn func(topic string, payload []byte)) error {
	return b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		fn(pk.TopicName, pk.Payload)
	})
}

func (b *Broker) Close() error {
	b.logger.Info("embedded MQTT broker stopping")
	return b.server.Close()
}
