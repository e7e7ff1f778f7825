package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"craftdesk.org/internal/audit"
	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/pm"
)

// listPayload is the uniform shape of paginated collections.
type listPayload struct {
	Items any     `json:"items"`
	Page  pm.Page `json:"page"`
}

type createProjectRequest struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	CustomerName string     `json:"customer_name"`
	Priority     string     `json:"priority"`
	QuotedPrice  int64      `json:"quoted_price"`
	DesignerID   string     `json:"designer_id"`
	SalesID      string     `json:"sales_id"`
	Notes        string     `json:"notes"`
	Deadline     *time.Time `json:"deadline"`
}

type updateProjectRequest struct {
	Name         *string    `json:"name"`
	Description  *string    `json:"description"`
	CustomerName *string    `json:"customer_name"`
	Priority     *string    `json:"priority"`
	QuotedPrice  *int64     `json:"quoted_price"`
	FinalPrice   *int64     `json:"final_price"`
	CostPrice    *int64     `json:"cost_price"`
	DesignerID   *string    `json:"designer_id"`
	SalesID      *string    `json:"sales_id"`
	Notes        *string    `json:"notes"`
	Deadline     *time.Time `json:"deadline"`
}

type patchStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermProjectRead); !ok {
		return
	}
	page, pageSize, err := parsePaging(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter := pm.ProjectFilter{
		Status:       pm.ProjectStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		CustomerName: strings.TrimSpace(r.URL.Query().Get("customer")),
		DesignerID:   strings.TrimSpace(r.URL.Query().Get("designer_id")),
		Page:         page,
		PageSize:     pageSize,
	}
	if filter.Status != "" && !pm.ValidProjectStatus(filter.Status) {
		writeError(w, r, http.StatusBadRequest, "unknown status filter")
		return
	}

	items, meta, err := a.pm.ListProjects(r.Context(), filter)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listPayload{Items: items, Page: meta}, "projects listed")
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermProjectCreate)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	project, err := a.pm.CreateProject(r.Context(), pm.Project{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Priority:     req.Priority,
		QuotedPrice:  req.QuotedPrice,
		CreatorID:    principal.User.ID,
		DesignerID:   req.DesignerID,
		SalesID:      req.SalesID,
		Notes:        req.Notes,
		Deadline:     req.Deadline,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "project.create", "project", project.ID, map[string]any{"number": project.Number})
	w.Header().Set("Location", "/api/v1/projects/"+project.ID)
	writeSuccess(w, http.StatusCreated, project, "project "+project.Number+" created")
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermProjectRead); !ok {
		return
	}
	project, err := a.pm.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, project, "ok")
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermProjectUpdate); !ok {
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Financial fields need a dedicated capability.
	if req.FinalPrice != nil || req.CostPrice != nil {
		if _, ok := a.requirePermission(w, r, auth.PermProjectFinancial); !ok {
			return
		}
	}

	project, err := a.pm.UpdateProject(r.Context(), r.PathValue("id"), pm.ProjectUpdate{
		Name:         req.Name,
		Description:  req.Description,
		CustomerName: req.CustomerName,
		Priority:     req.Priority,
		QuotedPrice:  req.QuotedPrice,
		FinalPrice:   req.FinalPrice,
		CostPrice:    req.CostPrice,
		DesignerID:   req.DesignerID,
		SalesID:      req.SalesID,
		Notes:        req.Notes,
		Deadline:     req.Deadline,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "project.update", "project", project.ID, nil)
	writeSuccess(w, http.StatusOK, project, "project updated")
}

func (a *API) patchProjectStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermProjectStatusChange); !ok {
		return
	}
	var req patchStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	project, err := a.pm.ChangeProjectStatus(r.Context(), r.PathValue("id"), pm.ProjectStatus(req.Status))
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "project.status_change", "project", project.ID, map[string]any{"status": req.Status})
	writeSuccess(w, http.StatusOK, project, "project status updated to "+req.Status)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermProjectDelete); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.pm.DeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, pm.ErrInvalidTransition) {
			writeError(w, r, http.StatusBadRequest, "only pending or cancelled projects can be deleted")
			return
		}
		handlePMError(w, r, err)
		return
	}
	a.auditEvent(r, "project.delete", "project", id, nil)
	writeSuccess(w, http.StatusOK, nil, "project deleted")
}

func (a *API) projectStatistics(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermReportView); !ok {
		return
	}
	stats, err := a.pm.Statistics(r.Context())
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, stats, "statistics computed")
}

func (a *API) auditEvent(r *http.Request, event, resourceType, resourceID string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["resource_type"] = resourceType
	fields["resource_id"] = resourceID
	_ = audit.LogEvent(r.Context(), event, fields)
}

func handlePMError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pm.ErrInvalidInput), errors.Is(err, pm.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, pm.ErrInvalidTransition):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, pm.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, pm.ErrFileTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
