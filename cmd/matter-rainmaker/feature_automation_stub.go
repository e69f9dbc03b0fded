//go:build no_automation

package main

import (
	"log/slog"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/web"
)

type automationFeature struct{}

func initAutomation(_ *Config, _ *slog.Logger) *automationFeature {
	return &automationFeature{}
}

func (f *automationFeature) Policy() func(*matter.Node) matter.Hooks { return nil }
func (f *automationFeature) Start()                                  {}
func (f *automationFeature) WebOptions() []web.ServerOption          { return nil }
func (f *automationFeature) Stop()                                   {}
