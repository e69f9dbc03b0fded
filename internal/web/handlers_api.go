package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

func (s *Server) handleAPINodeConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.RainMaker().Config())
}

func (s *Server) handleAPIGetParams(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.RainMaker().Params())
}

// handleAPISetParams applies a RainMaker params document as a local write.
// It answers with the params after the write, or 400 if any part was rejected.
func (s *Server) handleAPISetParams(w http.ResponseWriter, r *http.Request) {
	var req map[string]map[string]any
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no params"})
		return
	}

	if err := s.app.RainMaker().HandleWrite(r.Context(), req, rainmaker.SourceLocal); err != nil {
		s.logger.Info("local params write rejected", "err", err)
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"params": s.app.RainMaker().Params(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, s.app.RainMaker().Params())
}

type attributeView struct {
	ID       uint32       `json:"id"`
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Value    matter.Value `json:"value"`
	Writable bool         `json:"writable"`
}

type clusterView struct {
	ID         uint32          `json:"id"`
	Name       string          `json:"name"`
	Attributes []attributeView `json:"attributes"`
}

type endpointView struct {
	ID          uint16        `json:"id"`
	DeviceTypes []uint32      `json:"device_types"`
	Clusters    []clusterView `json:"clusters"`
}

func (s *Server) handleAPIListEndpoints(w http.ResponseWriter, r *http.Request) {
	var out []endpointView
	for _, ep := range s.app.Matter().Endpoints() {
		ev := endpointView{ID: ep.ID(), DeviceTypes: ep.DeviceTypes()}
		for _, c := range ep.Clusters() {
			cv := clusterView{ID: c.ID(), Name: c.Name()}
			for _, a := range c.Attributes() {
				cv.Attributes = append(cv.Attributes, attributeView{
					ID:       a.ID(),
					Name:     a.Name(),
					Type:     a.Type().String(),
					Value:    a.Value(),
					Writable: a.IsWritable(),
				})
			}
			ev.Clusters = append(ev.Clusters, cv)
		}
		out = append(out, ev)
	}
	s.writeJSON(w, http.StatusOK, out)
}

type writeAttributeRequest struct {
	Endpoint  uint16 `json:"endpoint"`
	Cluster   uint32 `json:"cluster"`
	Attribute uint32 `json:"attribute"`
	Value     any    `json:"value"`
}

// handleAPIWriteAttribute changes an attribute as the device itself would,
// so the change is reported to RainMaker.
func (s *Server) handleAPIWriteAttribute(w http.ResponseWriter, r *http.Request) {
	var req writeAttributeRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ref := matter.AttributeRef{Endpoint: req.Endpoint, Cluster: req.Cluster, Attribute: req.Attribute}
	a, err := s.app.Matter().Attribute(ref)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "status": matter.StatusFor(err).String()})
		return
	}
	v, err := matter.Coerce(a.Type(), req.Value)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "status": matter.StatusInvalidDataType.String()})
		return
	}

	if err := s.app.Matter().Update(r.Context(), ref, v, matter.OriginLocal); err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, matter.ErrVetoed) && matter.StatusFor(err) == matter.StatusFailure {
			status = http.StatusInternalServerError
			s.logger.Error("write attribute", "attr", ref.String(), "err", err)
		}
		s.writeJSON(w, status, map[string]string{"error": err.Error(), "status": matter.StatusFor(err).String()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": matter.StatusSuccess.String(), "value": a.Value()})
}

func (s *Server) handleAPIToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Toggle(r.Context()); err != nil {
		s.logger.Error("toggle", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	state, _ := s.app.Light().State(s.app.LightEndpoint())
	s.writeJSON(w, http.StatusOK, map[string]bool{"on": state.On})
}
