//go:build !no_mqtt

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"matter-rainmaker/internal/rainmaker"
)

// Config holds MQTT connection configuration.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string
	// ReportInterval is the minimum time between two parameter reports.
	// Reports arriving faster are merged.
	ReportInterval time.Duration
	// DiscoveryPrefix enables Home Assistant discovery under this prefix.
	DiscoveryPrefix string
}

func topicConfig(nodeID string) string       { return "node/" + nodeID + "/config" }
func topicParamsLocal(nodeID string) string  { return "node/" + nodeID + "/params/local" }
func topicParamsInit(nodeID string) string   { return "node/" + nodeID + "/params/local/init" }
func topicParamsRemote(nodeID string) string { return "node/" + nodeID + "/params/remote" }
func topicParamsState(nodeID string) string  { return "node/" + nodeID + "/params/state" }
func topicStatus(nodeID string) string       { return "node/" + nodeID + "/status" }

// Reporter delivers the node's parameter reports over MQTT and feeds
// remote writes back into the node.
type Reporter struct {
	client    pahomqtt.Client
	node      *rainmaker.Node
	discovery string
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	limiter *rate.Limiter
	mu      sync.Mutex
	pending map[string]map[string]any
	timer   *time.Timer
}

// NewReporter connects to the broker. On every (re)connect the node config
// and the full parameter set are published and the remote topic is
// subscribed.
func NewReporter(node *rainmaker.Node, cfg Config, logger *slog.Logger) (*Reporter, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		node:      node,
		discovery: cfg.DiscoveryPrefix,
		logger:    logger.With("component", "mqtt"),
		ctx:       ctx,
		cancel:    cancel,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		pending:   make(map[string]map[string]any),
	}
	if cfg.ReportInterval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(cfg.ReportInterval), 1)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = node.ID()
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(topicStatus(node.ID()), "offline", 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			r.logger.Info("MQTT connected", "broker", cfg.Broker)
			r.onConnect(c)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			r.logger.Warn("MQTT connection lost", "err", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	r.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		cancel()
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		cancel()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return r, nil
}

func (r *Reporter) onConnect(c pahomqtt.Client) {
	id := r.node.ID()
	r.publishWith(c, topicStatus(id), []byte("online"), true)
	if cfg, err := r.node.ConfigJSON(); err == nil {
		r.publishWith(c, topicConfig(id), cfg, true)
	} else {
		r.logger.Error("encode node config", "err", err)
	}
	params := r.node.Params()
	r.publishWith(c, topicParamsInit(id), mustJSON(params), false)
	r.publishWith(c, topicParamsState(id), mustJSON(params), true)

	c.Subscribe(topicParamsRemote(id), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		r.handleRemote(msg.Payload())
	})
	if r.discovery != "" {
		for _, msg := range buildDiscovery(r.node, r.discovery) {
			r.publishWith(c, msg.Topic, msg.Payload, true)
		}
		r.logger.Info("published HA discovery", "node_id", id)
	}
}

// Report publishes params to the local params topic. It never blocks:
// reports inside the rate limit are merged and flushed later.
func (r *Reporter) Report(_ context.Context, params map[string]map[string]any) error {
	r.mu.Lock()
	for dev, ps := range params {
		if r.pending[dev] == nil {
			r.pending[dev] = make(map[string]any, len(ps))
		}
		for name, v := range ps {
			r.pending[dev][name] = v
		}
	}
	if r.timer != nil {
		r.mu.Unlock()
		return nil
	}
	if delay := r.limiter.Reserve().Delay(); delay > 0 {
		r.timer = time.AfterFunc(delay, r.flush)
		r.mu.Unlock()
		return nil
	}
	batch := r.takePending()
	r.mu.Unlock()
	r.publishReport(batch)
	return nil
}

func (r *Reporter) flush() {
	r.mu.Lock()
	r.timer = nil
	batch := r.takePending()
	r.mu.Unlock()
	if len(batch) > 0 {
		r.publishReport(batch)
	}
}

// takePending must be called with r.mu held.
func (r *Reporter) takePending() map[string]map[string]any {
	batch := r.pending
	r.pending = make(map[string]map[string]any)
	return batch
}

func (r *Reporter) publishReport(batch map[string]map[string]any) {
	id := r.node.ID()
	r.publish(topicParamsLocal(id), mustJSON(batch), false)
	r.publish(topicParamsState(id), mustJSON(r.node.Params()), true)
	r.logger.Debug("params reported", "devices", len(batch))
}

func (r *Reporter) handleRemote(payload []byte) {
	var write map[string]map[string]any
	if err := json.Unmarshal(payload, &write); err != nil {
		r.logger.Warn("invalid remote params JSON", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()
	if err := r.node.HandleWrite(ctx, write, rainmaker.SourceCloud); err != nil {
		r.logger.Warn("remote write rejected", "err", err)
	}
}

// Close flushes a pending report, publishes the offline status and
// disconnects.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	batch := r.takePending()
	r.mu.Unlock()
	if len(batch) > 0 {
		r.publishReport(batch)
	}
	r.cancel()
	r.publish(topicStatus(r.node.ID()), []byte("offline"), true)
	r.client.Disconnect(1000)
	r.logger.Info("MQTT reporter stopped")
}

func (r *Reporter) publish(topic string, payload []byte, retained bool) {
	r.publishWith(r.client, topic, payload, retained)
}

func (r *Reporter) publishWith(c pahomqtt.Client, topic string, payload []byte, retained bool) {
	token := c.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			r.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			r.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
