//go:build !no_mqtt

package main

import (
	"log/slog"
	"time"

	"matter-rainmaker/internal/app"
	mqttreporter "matter-rainmaker/internal/mqtt"
)

type mqttStopper struct {
	reporter *mqttreporter.Reporter
	broker   *mqttreporter.Broker
}

func (m *mqttStopper) Stop() {
	if m.reporter != nil {
		m.reporter.Close()
	}
	if m.broker != nil {
		if err := m.broker.Close(); err != nil {
			slog.Warn("mqtt broker close", "err", err)
		}
	}
}

// initMQTT connects the RainMaker node to the broker, starting an embedded
// one first when configured.
func initMQTT(device *app.App, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}
	}
	m := &mqttStopper{}
	brokerURL := cfg.MQTT.Broker
	if cfg.MQTT.Embedded {
		b, err := mqttreporter.NewBroker(cfg.MQTT.Listen, logger)
		if err != nil {
			logger.Error("mqtt broker", "err", err)
			return m
		}
		m.broker = b
		if brokerURL == "" {
			brokerURL = b.URL()
		}
	}

	rep, err := mqttreporter.NewReporter(device.RainMaker(), mqttreporter.Config{
		Broker:          brokerURL,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		ClientID:        cfg.MQTT.ClientID,
		ReportInterval:  time.Duration(cfg.MQTT.ReportIntervalMS) * time.Millisecond,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
	}, logger)
	if err != nil {
		logger.Error("mqtt reporter", "err", err)
		return m
	}
	device.SetReporter(rep)
	m.reporter = rep
	return m
}
