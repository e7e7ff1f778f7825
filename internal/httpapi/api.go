package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/obs"
	"craftdesk.org/internal/pm"
)

// ReadyProbe is a simple readiness check (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	auth       *auth.Service
	pm         pm.Service

	rateBurst  int
	ratePerSec int
}

// New wires routes for the given services.
func New(rp ReadyProbe, version string, authSvc *auth.Service, pmSvc pm.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       authSvc,
		pm:         pmSvc,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /api/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("POST /api/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("GET /api/v1/auth/current-user", a.handleCurrentUser)
	a.mux.HandleFunc("POST /api/v1/auth/change-password", a.handleChangePassword)

	a.mux.HandleFunc("GET /api/v1/projects", a.listProjects)
	a.mux.HandleFunc("POST /api/v1/projects", a.createProject)
	a.mux.HandleFunc("GET /api/v1/projects/statistics", a.projectStatistics)
	a.mux.HandleFunc("GET /api/v1/projects/{id}", a.getProject)
	a.mux.HandleFunc("PUT /api/v1/projects/{id}", a.updateProject)
	a.mux.HandleFunc("PATCH /api/v1/projects/{id}/status", a.patchProjectStatus)
	a.mux.HandleFunc("DELETE /api/v1/projects/{id}", a.deleteProject)

	a.mux.HandleFunc("GET /api/v1/projects/{id}/files", a.listProjectFiles)
	a.mux.HandleFunc("POST /api/v1/projects/{id}/files", a.uploadProjectFile)
	a.mux.HandleFunc("GET /api/v1/projects/{id}/files/{fileID}", a.downloadProjectFile)
	a.mux.HandleFunc("DELETE /api/v1/projects/{id}/files/{fileID}", a.deleteProjectFile)

	a.mux.HandleFunc("GET /api/v1/tasks", a.listTasks)
	a.mux.HandleFunc("POST /api/v1/tasks", a.createTask)
	a.mux.HandleFunc("GET /api/v1/tasks/{id}", a.getTask)
	a.mux.HandleFunc("PUT /api/v1/tasks/{id}", a.updateTask)
	a.mux.HandleFunc("PATCH /api/v1/tasks/{id}/status", a.patchTaskStatus)
	a.mux.HandleFunc("DELETE /api/v1/tasks/{id}", a.deleteTask)

	a.mux.HandleFunc("GET /api/v1/suppliers", a.listSuppliers)
	a.mux.HandleFunc("POST /api/v1/suppliers", a.createSupplier)
	a.mux.HandleFunc("GET /api/v1/suppliers/{id}", a.getSupplier)
	a.mux.HandleFunc("PUT /api/v1/suppliers/{id}", a.updateSupplier)
	a.mux.HandleFunc("DELETE /api/v1/suppliers/{id}", a.deleteSupplier)

	a.mux.HandleFunc("GET /api/v1/users", a.listUsers)
	a.mux.HandleFunc("POST /api/v1/users", a.createUser)
	a.mux.HandleFunc("GET /api/v1/users/{id}", a.getUser)
	a.mux.HandleFunc("PUT /api/v1/users/{id}", a.updateUser)
	a.mux.HandleFunc("DELETE /api/v1/users/{id}", a.deleteUser)

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	// JSON bodies are capped separately in decodeJSON; this outer limit
	// leaves room for multipart file uploads plus their framing.
	h = MaxBodyBytes(h, pm.MaxFileBytes+64<<10)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "craftdesk-api",
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
