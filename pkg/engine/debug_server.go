package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/locator"
	"github.com/go-drift/danmaku/pkg/overlay"
	"github.com/go-drift/danmaku/pkg/pool"
)

// debugServer manages the HTTP server for live inspection.
type debugServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// StatsResponse is the /stats response shape.
type StatsResponse struct {
	PositionMs int64                 `json:"positionMs"`
	Playing    bool                  `json:"playing"`
	Viewport   graphics.Size         `json:"viewport"`
	Remaining  int                   `json:"remaining"`
	Active     int                   `json:"active"`
	Visible    int                   `json:"visible"`
	Totals     overlay.Stats         `json:"totals"`
	LastFrame  overlay.FrameStats    `json:"lastFrame"`
	Pools      map[string]pool.Stats `json:"pools"`
	Lanes      []locator.LaneStat    `json:"lanes"`
}

// StartDebugServer starts the debug server on port, or on an ephemeral
// port when port is -1, and returns the bound port. Starting an already
// running server returns its port.
func (e *Engine) StartDebugServer(port int) (int, error) {
	e.debug.mu.Lock()
	defer e.debug.mu.Unlock()

	if e.debug.server != nil {
		return e.debug.listener.Addr().(*net.TCPAddr).Port, nil
	}
	if port < 0 {
		port = 0
	}

	// Bind listener first to fail fast on port conflicts
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return 0, fmt.Errorf("debug server listen: %w", err)
	}

	server := &http.Server{Handler: e.Handler()}
	e.debug.server = server
	e.debug.listener = listener

	go func() {
		defer errors.Recover("engine.debugServer")
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			e.debug.mu.Lock()
			e.debug.server = nil
			e.debug.listener = nil
			e.debug.mu.Unlock()
			errors.Report(&errors.DanmakuError{Op: "engine.debugServer", Kind: errors.KindIO, Err: err})
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// StopDebugServer gracefully shuts down the debug server.
func (e *Engine) StopDebugServer() {
	e.debug.mu.Lock()
	server := e.debug.server
	e.debug.server = nil
	e.debug.listener = nil
	e.debug.mu.Unlock()

	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

// Handler returns the debug endpoints:
//
//	/health     liveness
//	/frames     recent frame samples (?limit=N&min_ms=F&discarded=true)
//	/stats      controller counters, pool and lane occupancy
//	/instances  active instances in draw order
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/frames", recoverHandler("engine.debugFrames", e.handleFrames))
	mux.HandleFunc("/stats", recoverHandler("engine.debugStats", e.handleStats))
	mux.HandleFunc("/instances", recoverHandler("engine.debugInstances", e.handleInstances))
	return mux
}

// recoverHandler reports a panic in h to the error handler and answers 500.
func recoverHandler(op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer errors.RecoverWithCallback(op, func(p *errors.PanicError) {
			http.Error(w, fmt.Sprintf("internal error: %v", p.Value), http.StatusInternalServerError)
		})
		h(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (e *Engine) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := e.trace.Snapshot()
	applyFrameFilters(r, &resp)
	writeJSON(w, resp)
}

func (e *Engine) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, e.statsSnapshot())
}

func (e *Engine) statsSnapshot() StatsResponse {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	resp := StatsResponse{
		PositionMs: e.playback.Position(),
		Playing:    e.playback.Playing(),
		Viewport:   e.ctrl.Viewport(),
		Remaining:  e.ctrl.Resolver().Remaining(),
		Active:     e.ctrl.ActiveCount(),
		Visible:    e.ctrl.VisibleCount(),
		Totals:     e.ctrl.Stats(),
		LastFrame:  e.last,
		Pools:      make(map[string]pool.Stats),
		Lanes:      e.ctrl.Locator().Occupancy(),
	}
	for t, s := range e.ctrl.Pools().Stats() {
		resp.Pools[t.String()] = s
	}
	return resp
}

func (e *Engine) handleInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	instances := e.instancesSnapshot()

	writeJSON(w, struct {
		Instances []overlay.InstanceInfo `json:"instances"`
	}{instances})
}

func (e *Engine) instancesSnapshot() []overlay.InstanceInfo {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.ctrl.Instances()
}

// writeJSON encodes to a buffer first so encoding errors become a 500.
func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func applyFrameFilters(r *http.Request, resp *FrameTimeline) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var filters []func(FrameSample) bool
	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.FrameMs >= v })
	}
	if value := r.URL.Query().Get("discarded"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s FrameSample) bool { return s.Discarded > 0 })
		}
	}

	if len(filters) > 0 {
		filtered := make([]FrameSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}
