package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"matter-rainmaker/internal/automation"
)

// scriptResponse is returned after a script is created, updated or toggled.
// Status is the engine's view once the script has been (re)loaded.
type scriptResponse struct {
	*automation.Script
	Status automation.ScriptStatus `json:"status"`
}

type saveAutomationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) automationsAvailable(w http.ResponseWriter) bool {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "automations not available"})
		return false
	}
	return true
}

func (s *Server) decodeScriptRequest(w http.ResponseWriter, r *http.Request) (saveAutomationRequest, bool) {
	var req saveAutomationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	return req, true
}

// saveScript stores the script, reloads it in the engine and writes the
// response. Scripts that fail the compile check get 400 with the reason.
func (s *Server) saveScript(w http.ResponseWriter, script *automation.Script, status int, op string) {
	saved, err := s.scriptMgr.Save(script)
	if errors.Is(err, automation.ErrInvalidScript) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error(op+" script", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, status, scriptResponse{Script: saved, Status: s.reloadScript(saved, op)})
}

// reloadScript applies a saved script to the engine and reports its state.
func (s *Server) reloadScript(saved *automation.Script, op string) automation.ScriptStatus {
	st := automation.ScriptStatus{
		ID:         saved.ID,
		Name:       saved.Meta.Name,
		Enabled:    saved.Meta.Enabled,
		PreUpdate:  saved.Hooks.PreUpdate,
		PostUpdate: saved.Hooks.PostUpdate,
	}
	if s.autoEngine == nil {
		return st
	}
	if err := s.autoEngine.ReloadScript(saved.ID); err != nil {
		s.logger.Warn("reload script after "+op, "id", saved.ID, "err", err)
		st.Error = err.Error()
	}
	list, err := s.autoEngine.Scripts()
	if err != nil {
		s.logger.Error("script status", "id", saved.ID, "err", err)
		return st
	}
	for _, got := range list {
		if got.ID == saved.ID {
			return got
		}
	}
	return st
}

func (s *Server) handleAPIListAutomations(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusOK, []any{})
		return
	}
	var (
		scripts any
		err     error
	)
	if s.autoEngine != nil {
		scripts, err = s.autoEngine.Scripts()
	} else {
		scripts, err = s.scriptMgr.List()
	}
	if err != nil {
		s.logger.Error("list scripts", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleAPIGetAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, script)
}

func (s *Server) handleAPICreateAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.automationsAvailable(w) {
		return
	}
	req, ok := s.decodeScriptRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	s.saveScript(w, &automation.Script{
		Meta:    automation.ScriptMeta{Name: req.Name, Description: req.Description, Enabled: req.Enabled},
		LuaCode: req.LuaCode,
	}, http.StatusCreated, "create")
}

func (s *Server) handleAPIUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.automationsAvailable(w) {
		return
	}
	existing, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	req, ok := s.decodeScriptRequest(w, r)
	if !ok {
		return
	}
	if req.Name != "" {
		existing.Meta.Name = req.Name
	}
	existing.Meta.Description = req.Description
	existing.Meta.Enabled = req.Enabled
	existing.LuaCode = req.LuaCode
	s.saveScript(w, existing, http.StatusOK, "update")
}

// handleAPIToggleAutomation flips Enabled. A script edited on disk into
// something that no longer compiles cannot be toggled until it is fixed.
func (s *Server) handleAPIToggleAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.automationsAvailable(w) {
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	script.Meta.Enabled = !script.Meta.Enabled
	s.saveScript(w, script, http.StatusOK, "toggle")
}

func (s *Server) handleAPIDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.automationsAvailable(w) {
		return
	}
	id := r.PathValue("id")
	if s.autoEngine != nil {
		s.autoEngine.StopScript(id)
	}
	if err := s.scriptMgr.Delete(id); err != nil {
		s.logger.Error("delete script", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIRunAutomation runs a saved script once, or the body's lua_code
// when id is _inline. Hooks defined by the run are discarded.
func (s *Server) handleAPIRunAutomation(w http.ResponseWriter, r *http.Request) {
	if s.autoEngine == nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "automation engine not available"})
		return
	}

	id := r.PathValue("id")
	if id == "_inline" {
		var req struct {
			LuaCode string `json:"lua_code"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(req.LuaCode))
		return
	}

	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	script, err := s.scriptMgr.Get(id)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(script.LuaCode))
}
