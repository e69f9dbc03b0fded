//go:build !no_automation

package main

import (
	"log/slog"

	"matter-rainmaker/internal/automation"
	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/web"
)

// automationFeature runs the policy scripts as the first update hooks of the
// node. The engine is created by the policy factory during app.New.
type automationFeature struct {
	logger  *slog.Logger
	manager *automation.Manager
	engine  *automation.Engine
}

func initAutomation(cfg *Config, logger *slog.Logger) *automationFeature {
	f := &automationFeature{logger: logger}
	mgr, err := automation.NewManager(cfg.ScriptsDir)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return f
	}
	f.manager = mgr
	return f
}

// Policy returns the app policy factory, or nil without a script manager.
func (f *automationFeature) Policy() func(*matter.Node) matter.Hooks {
	if f.manager == nil {
		return nil
	}
	return func(n *matter.Node) matter.Hooks {
		f.engine = automation.NewEngine(n, f.manager, f.logger)
		return f.engine
	}
}

// Start loads the enabled scripts. The node must exist by now.
func (f *automationFeature) Start() {
	if f.engine != nil {
		f.engine.Start()
	}
}

func (f *automationFeature) WebOptions() []web.ServerOption {
	if f.engine == nil {
		return nil
	}
	return []web.ServerOption{web.WithAutomation(f.engine, f.manager)}
}

func (f *automationFeature) Stop() {
	if f.engine != nil {
		f.engine.Stop()
	}
}
