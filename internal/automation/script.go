//go:build !no_automation

package automation

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script represents a single policy script stored on disk.
type Script struct {
	// ID is the filename stem without .lua.
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
