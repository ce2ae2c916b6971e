package portsided

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/portsidehq/portside/internal/compose"
	"github.com/portsidehq/portside/internal/ident"
	"github.com/portsidehq/portside/internal/relay"
	"github.com/portsidehq/portside/internal/store"
	"github.com/portsidehq/portside/internal/telemetry/otel"
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// API serves the container diagnostics surface: discovery, attempt
// lookups, and the two websocket relays.
type API struct {
	store     *store.Store
	discovery *compose.Client
	bin       string
	logTail   int
	sessions  *otel.SessionInstruments
}

// NewAPI wires the API against its collaborators. sessions may be nil.
func NewAPI(st *store.Store, discovery *compose.Client, bin string, logTail int, sessions *otel.SessionInstruments) *API {
	return &API{
		store:     st,
		discovery: discovery,
		bin:       bin,
		logTail:   logTail,
		sessions:  sessions,
	}
}

// Register attaches all routes to mux.
func (api *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", api.handleHealthz)
	mux.HandleFunc("GET /api/containers/info", api.handleContainerInfo)
	mux.HandleFunc("GET /api/containers/{attempt}/services", api.handleContainerServices)
	mux.HandleFunc("GET /api/containers/{container}/logs/ws", api.handleLogsWS)
	mux.HandleFunc("GET /api/containers/{container}/shell/ws", api.handleShellWS)
	mux.HandleFunc("POST /api/attempts", api.handleRegisterAttempt)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}

// writeFailure maps the error taxonomy to HTTP statuses: unknown
// references are 404, unprovisioned ones 409 (retry after first run),
// sanitization failures 400, and runtime command failures 502 with the
// captured diagnostic text.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var cmdErr *compose.CommandError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, compose.ErrNotProvisioned):
		status = http.StatusConflict
	case errors.Is(err, ident.ErrInvalidIdentifier):
		status = http.StatusBadRequest
	case errors.As(err, &cmdErr):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, apiResponse{Success: false, Message: err.Error()})
}

func (api *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *API) handleContainerInfo(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if strings.TrimSpace(ref) == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "query parameter 'ref' is required"})
		return
	}
	info, err := api.store.ResolveContainerRef(ref)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, info)
}

func (api *API) handleContainerServices(w http.ResponseWriter, r *http.Request) {
	attemptID, err := uuid.Parse(r.PathValue("attempt"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid attempt id"})
		return
	}

	attempt, err := api.store.FindAttempt(attemptID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	project, err := compose.ResolveProject(attempt.ContainerRef)
	if err != nil {
		writeFailure(w, err)
		return
	}

	services, err := api.discovery.Services(r.Context(), project)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, services)
}

type registerAttemptRequest struct {
	ID           uuid.UUID `json:"id"`
	TaskID       uuid.UUID `json:"task_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	ContainerRef string    `json:"container_ref"`
}

func (api *API) handleRegisterAttempt(w http.ResponseWriter, r *http.Request) {
	var req registerAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	attempt := store.Attempt{
		ID:           req.ID,
		TaskID:       req.TaskID,
		ProjectID:    req.ProjectID,
		ContainerRef: req.ContainerRef,
		CreatedAt:    time.Now().UTC(),
	}
	if err := api.store.Put(attempt); err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusCreated, attempt)
}

func (api *API) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	container, err := ident.Sanitize(r.PathValue("container"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("portsided: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	handle, ctx := api.sessions.Start(r.Context(), "logs", container)
	cmd := compose.LogsCommand(ctx, api.bin, container, api.logTail)
	stats, serveErr := relay.ServeLogs(conn, cmd)
	api.sessions.Finish(handle, stats.FramesOut, stats.BytesOut, serveErr)
	if serveErr != nil {
		log.Printf("portsided: log session for %s closed: %v", container, serveErr)
	}
}

func (api *API) handleShellWS(w http.ResponseWriter, r *http.Request) {
	container, err := ident.Sanitize(r.PathValue("container"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("portsided: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	handle, ctx := api.sessions.Start(r.Context(), "shell", container)
	cmd := compose.ShellCommand(ctx, api.bin, container)
	stats, serveErr := relay.ServeShell(conn, cmd)
	api.sessions.Finish(handle, stats.FramesOut, stats.BytesOut, serveErr)
	if serveErr != nil {
		log.Printf("portsided: shell session for %s closed: %v", container, serveErr)
	}
}
