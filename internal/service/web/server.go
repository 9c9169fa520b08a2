package web

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/internal/shared/types"
	"proxypool_nexus/proxypool/model"
)

// PoolController is the slice of the pool manager the web service needs.
type PoolController interface {
	Size() int
	Snapshot() []*model.ValidatedProxy
	Remove(host string, port int) bool
	SetCountry(code string) error
	Country() string
	Refilling() bool
}

// basicAuthMiddleware enforces HTTP Basic Authentication when web_user and
// web_password are both configured; otherwise it passes requests through.
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	PoolSize  int    `json:"pool_size"`
	Target    int    `json:"target"`
	Country   string `json:"country"`
	Refilling bool   `json:"refilling"`
}

type removeRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type countryRequest struct {
	Country string `json:"country"`
}

// Handler serves the pool status and control API.
type Handler struct {
	cfg  *types.Config
	ctrl PoolController
}

func NewHandler(cfg *types.Config, ctrl PoolController) *Handler {
	return &Handler{cfg: cfg, ctrl: ctrl}
}

// HandleStatus returns the pool's health summary.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		PoolSize:  h.ctrl.Size(),
		Target:    h.cfg.PoolConf.TargetSize,
		Country:   h.ctrl.Country(),
		Refilling: h.ctrl.Refilling(),
	})
}

// HandleProxies returns a snapshot of the pooled entries.
func (h *Handler) HandleProxies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// HandleRemove drops a proxy by host+port.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	removed := h.ctrl.Remove(req.Host, req.Port)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// HandleCountry switches the country tag for future provider requests.
func (h *Handler) HandleCountry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req countryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.ctrl.SetCountry(req.Country); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"country": req.Country})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to encode JSON response.")
	}
}

// StartServer starts the status web service. It is disabled when web_port
// is 0 or negative.
func StartServer(wg *sync.WaitGroup, cfg *types.Config, ctrl PoolController, hub *Hub) {
	l := logger.WithComponent("WebServer")
	if cfg.WebConf.WebPort <= 0 {
		l.Info().Msg("Web service is disabled (web_port is 0 or not set).")
		return
	}

	handler := NewHandler(cfg, ctrl)
	mux := http.NewServeMux()

	webUser := cfg.WebConf.WebUser
	webPassword := cfg.WebConf.WebPassword

	// Control endpoints are auth protected.
	mux.Handle("/api/proxies", basicAuthMiddleware(http.HandlerFunc(handler.HandleProxies), webUser, webPassword))
	mux.Handle("/api/proxies/remove", basicAuthMiddleware(http.HandlerFunc(handler.HandleRemove), webUser, webPassword))
	mux.Handle("/api/country", basicAuthMiddleware(http.HandlerFunc(handler.HandleCountry), webUser, webPassword))

	// Public status API and event stream.
	mux.HandleFunc("/api/status", handler.HandleStatus)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.WebConf.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		l.Error().Err(err).Str("addr", addr).Msg("Failed to start web service.")
		return
	}

	l.Info().Msgf("Web service is listening on http://%s", addr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := http.Serve(listener, mux); err != nil && err != http.ErrServerClosed {
			l.Error().Err(err).Msg("Web server error.")
		}
		l.Info().Msg("Web server stopped.")
	}()
}
