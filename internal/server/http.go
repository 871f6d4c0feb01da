package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/probe"
	"github.com/muurk/probekit/internal/protocol"
)

// probeView is a snapshot as served to clients
type probeView struct {
	probe.State
	Nickname string `json:"nickname,omitempty"`
}

// Handler returns the bridge's routes
//
//	GET /probes           all snapshots
//	GET /probes/{serial}  one snapshot
//	GET /ws               live event stream
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /probes", s.handleProbes)
	mux.HandleFunc("GET /probes/{serial}", s.handleProbe)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return logRequests(mux)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) view(st probe.State) probeView {
	v := probeView{State: st}
	if s.config.Nicknames != nil {
		v.Nickname = s.config.Nicknames(st.Serial)
	}
	return v
}

func (s *Server) views() []probeView {
	snaps := s.manager.Snapshots()
	out := make([]probeView, 0, len(snaps))
	for _, st := range snaps {
		out = append(out, s.view(st))
	}
	return out
}

func (s *Server) handleProbes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.views())
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	serial, err := protocol.ParseSerial(r.PathValue("serial"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.manager.Probe(serial)
	if err != nil {
		status := http.StatusInternalServerError
		if protocol.IsType(err, protocol.ErrTypeProbeNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(p.Snapshot()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
