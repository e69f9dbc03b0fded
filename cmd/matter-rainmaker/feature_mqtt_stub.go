//go:build no_mqtt

package main

import (
	"log/slog"

	"matter-rainmaker/internal/app"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *app.App, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
