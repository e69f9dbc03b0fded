//go:build !no_automation

package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// metaPrefix starts the metadata comment on the first line of a script file.
const metaPrefix = "-- {"

// Manager stores policy scripts as <id>.lua files in one directory. A file
// may begin with a JSON metadata comment:
//
//	-- {"name":"Night cap","enabled":true}
//
// Scripts without it are enabled and named after the file.
type Manager struct {
	dir string
	mu  sync.RWMutex
}

// NewManager opens the script directory, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// List returns every script in ID order, which is also the order their
// hooks run in. Files edited on disk are listed even if they no longer
// compile; the engine reports their load error.
func (m *Manager) List() ([]*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(m.dir, "*.lua"))
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	scripts := make([]*Script, 0, len(paths))
	for _, path := range paths {
		s, err := m.parseFile(path)
		if err != nil {
			slog.Warn("skip unreadable script", "file", path, "err", err)
			continue
		}
		scripts = append(scripts, s)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].ID < scripts[j].ID })
	return scripts, nil
}

// Get loads one script.
func (m *Manager) Get(id string) (*Script, error) {
	path, err := m.path(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseFile(path)
}

// Save checks and writes a script. Code that does not compile or defines no
// update hook is rejected with ErrInvalidScript and nothing is written. A
// script without an ID gets one derived from its name.
func (m *Manager) Save(s *Script) (*Script, error) {
	hooks, err := CheckScript(s.LuaCode)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = m.freeID(slugify(s.Meta.Name))
	}
	path, err := m.path(s.ID)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(serializeScript(s)), 0o644); err != nil {
		return nil, fmt.Errorf("write script %s: %w", s.ID, err)
	}
	s.FilePath = path
	s.Hooks = hooks
	return s, nil
}

// freeID returns base, or base_N for the first N not taken on disk.
func (m *Manager) freeID(base string) string {
	if base == "" {
		base = "script"
	}
	id := base
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(m.dir, id+".lua")); errors.Is(err, os.ErrNotExist) {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

// Delete removes a script file.
func (m *Manager) Delete(id string) error {
	path, err := m.path(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete script %s: %w", id, err)
	}
	return nil
}

func (m *Manager) path(id string) (string, error) {
	if !validScriptID(id) {
		return "", fmt.Errorf("invalid script id: %q", id)
	}
	return filepath.Join(m.dir, id+".lua"), nil
}

// validScriptID rejects IDs that could escape the script directory.
func validScriptID(id string) bool {
	return id != "" && id != "." && !strings.Contains(id, "..") && !strings.ContainsAny(id, `/\`)
}

// parseFile reads a script file and splits off its metadata line.
func (m *Manager) parseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSuffix(filepath.Base(path), ".lua")
	s := &Script{ID: id, FilePath: path, Meta: ScriptMeta{Name: id, Enabled: true}}

	code := string(data)
	if strings.HasPrefix(code, metaPrefix) {
		first, rest, _ := strings.Cut(code, "\n")
		meta := ScriptMeta{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(first, "-- ")), &meta); err != nil {
			slog.Warn("script metadata parse error", "file", path, "err", err)
		}
		s.Meta = meta
		code = rest
	}
	s.LuaCode = strings.TrimLeft(code, "\r\n")
	// a script broken on disk keeps an empty hook set
	s.Hooks, _ = CheckScript(s.LuaCode)
	return s, nil
}

// serializeScript renders the metadata comment followed by the code.
func serializeScript(s *Script) string {
	meta, _ := json.Marshal(s.Meta)
	out := "-- " + string(meta) + "\n"
	if s.LuaCode == "" {
		return out
	}
	out += "\n" + s.LuaCode
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a display name into a file-safe ID of at most 40 bytes.
func slugify(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	s = strings.Trim(s, "_")
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
