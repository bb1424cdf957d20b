package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/drsadivural/adele-sub000/internal/agent"
	"github.com/drsadivural/adele-sub000/internal/bus"
	"github.com/drsadivural/adele-sub000/internal/dispatch"
	"github.com/drsadivural/adele-sub000/internal/gateway"
	"github.com/drsadivural/adele-sub000/internal/provider"
	"github.com/drsadivural/adele-sub000/internal/store"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	coord      *agent.Coordinator
	provRouter *provider.Router
	dispatcher *dispatch.Dispatcher
	store      *store.Store
	bus        *bus.Bus
	gw         *gateway.Gateway
	logger     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	coord *agent.Coordinator,
	provRouter *provider.Router,
	dispatcher *dispatch.Dispatcher,
	st *store.Store,
	b *bus.Bus,
	gw *gateway.Gateway,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		coord:      coord,
		provRouter: provRouter,
		dispatcher: dispatcher,
		store:      st,
		bus:        b,
		gw:         gw,
		logger:     logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Agent routes
		r.Get("/agents", h.listAgents)
		r.Post("/agents/{type}/reset", h.resetAgent)

		// Task routes
		r.Post("/tasks", h.createTask)
		r.Get("/tasks", h.listTasks)
		r.Get("/tasks/{id}", h.getTask)
		r.Get("/tasks/{id}/messages", h.getTaskMessages)
		r.Get("/tasks/{id}/artifacts", h.getTaskArtifacts)
		r.Get("/tasks/{id}/events", h.streamTaskEvents)

		// Provider routes
		r.Get("/providers", h.listProviders)

		// Gateway routes
		r.Get("/gateway/status", h.gatewayStatus)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "adele"})
}

type workerStatus struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	State string `json:"state"`
	Step  int    `json:"step"`
	Phase string `json:"phase,omitempty"`
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	workers := h.coord.Registry().All()
	statuses := make([]workerStatus, 0, len(workers))
	for _, wk := range workers {
		ws := workerStatus{
			Type:  string(wk.Type()),
			Name:  wk.Name(),
			State: string(wk.State()),
			Step:  wk.Step(),
		}
		if c, ok := wk.(*agent.Coordinator); ok {
			ws.Phase = string(c.Phase())
		}
		statuses = append(statuses, ws)
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) resetAgent(w http.ResponseWriter, r *http.Request) {
	typ := agent.WorkerType(chi.URLParam(r, "type"))
	wk, ok := h.coord.Registry().Lookup(typ)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown agent type"})
		return
	}
	wk.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "type": string(typ)})
}

type createTaskRequest struct {
	Description string         `json:"description"`
	Input       map[string]any `json:"input,omitempty"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}

	runID, res := h.dispatcher.Run(r.Context(), "api", req.Description, req.Input)
	writeJSON(w, http.StatusCreated, map[string]any{
		"run_id": runID,
		"result": res,
	})
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err == store.ErrNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) getTaskMessages(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	msgs, err := h.store.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) getTaskArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	arts, err := h.store.Artifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, arts)
}

// streamTaskEvents serves a run's event stream as server-sent events until
// the client disconnects.
func (h *Handler) streamTaskEvents(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus not initialized"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.bus.Subscribe(r.Context(), chi.URLParam(r, "id"))
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	type providerInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	providers := h.provRouter.ListProviders()
	infos := make([]providerInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, providerInfo{ID: p.ID(), Name: p.Name()})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
