package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/flock-cli/flock/internal/core"
)

// serverInfo is the wire shape of one dev server in the listing.
type serverInfo struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Session   string `json:"session"`
	Status    string `json:"status"`
	Port      int    `json:"port,omitempty"`
}

// Handler builds the local HTTP surface: a JSON listing of dev servers and
// a per-agent reverse proxy, CORS-open for localhost browser tooling.
func (m *Manager) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/servers", func(w http.ResponseWriter, req *http.Request) {
		var infos []serverInfo
		m.mu.Lock()
		for _, s := range m.servers {
			infos = append(infos, serverInfo{
				AgentID:   s.AgentID.String(),
				AgentName: s.AgentName,
				Session:   s.Session,
				Status:    string(s.Status),
				Port:      s.Port,
			})
		}
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(infos)
	})

	r.Handle("/proxy/{agentID}/*", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := core.ParseAgentID(chi.URLParam(req, "agentID"))
		if err != nil {
			http.Error(w, "bad agent id", http.StatusBadRequest)
			return
		}
		server, ok := m.Get(id)
		if !ok || server.Status != StatusRunning || server.Port == 0 {
			http.Error(w, "no running dev server for agent", http.StatusBadGateway)
			return
		}
		target := &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", server.Port)}
		proxy := httputil.NewSingleHostReverseProxy(target)
		http.StripPrefix("/proxy/"+chi.URLParam(req, "agentID"), proxy).ServeHTTP(w, req)
	}))

	return r
}
