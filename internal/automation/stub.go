//go:build no_automation

package automation

import (
	"context"
	"errors"
	"log/slog"

	"matter-rainmaker/internal/matter"
)

// ErrScriptVeto is never returned when automation is disabled.
var ErrScriptVeto = errors.New("rejected by script")

// ErrInvalidScript is never returned when automation is disabled.
var ErrInvalidScript = errors.New("invalid script")

// HookSet lists the update hooks a script defines as globals.
type HookSet struct {
	PreUpdate  bool `json:"pre_update"`
	PostUpdate bool `json:"post_update"`
}

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script represents a single policy script stored on disk.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	Hooks    HookSet    `json:"hooks"`
	FilePath string     `json:"-"`
}

// ScriptStatus describes a script as seen by the engine.
type ScriptStatus struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Running    bool   `json:"running"`
	PreUpdate  bool   `json:"pre_update"`
	PostUpdate bool   `json:"post_update"`
	Error      string `json:"error,omitempty"`
}

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Manager is a no-op stub when automation is disabled.
type Manager struct{}

// NewManager returns nil manager when automation is disabled.
func NewManager(_ string) (*Manager, error) { return nil, nil }

// List returns nil.
func (m *Manager) List() ([]*Script, error) { return nil, nil }

// Get returns nil.
func (m *Manager) Get(_ string) (*Script, error) { return nil, nil }

// Save returns the script unchanged.
func (m *Manager) Save(s *Script) (*Script, error) { return s, nil }

// CheckScript accepts everything.
func CheckScript(_ string) (HookSet, error) { return HookSet{}, nil }

// Delete is a no-op.
func (m *Manager) Delete(_ string) error { return nil }

// Engine is a no-op stub when automation is disabled.
type Engine struct{}

// NewEngine returns a no-op engine when automation is disabled.
func NewEngine(_ *matter.Node, _ *Manager, _ *slog.Logger) *Engine {
	return &Engine{}
}

// Start is a no-op.
func (e *Engine) Start() {}

// Stop is a no-op.
func (e *Engine) Stop() {}

// ReloadScript is a no-op.
func (e *Engine) ReloadScript(_ string) error { return nil }

// StopScript is a no-op.
func (e *Engine) StopScript(_ string) {}

// Scripts returns nil.
func (e *Engine) Scripts() ([]ScriptStatus, error) { return nil, nil }

// RunLuaCode returns a stub result.
func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{OK: false, Error: "automation disabled"}
}

// PreUpdate passes every update through.
func (e *Engine) PreUpdate(_ context.Context, _ matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	return v, nil
}

// PostUpdate is a no-op.
func (e *Engine) PostUpdate(context.Context, matter.AttributeRef, matter.Value, matter.Origin) {}
