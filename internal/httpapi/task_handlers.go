package httpapi

import (
	"net/http"
	"strings"
	"time"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/pm"
)

type createTaskRequest struct {
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	AssigneeID  *string    `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermTaskRead); !ok {
		return
	}
	page, pageSize, err := parsePaging(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter := pm.TaskFilter{
		ProjectID:  strings.TrimSpace(r.URL.Query().Get("project_id")),
		AssigneeID: strings.TrimSpace(r.URL.Query().Get("assignee_id")),
		Status:     pm.TaskStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Page:       page,
		PageSize:   pageSize,
	}
	if filter.Status != "" && !pm.ValidTaskStatus(filter.Status) {
		writeError(w, r, http.StatusBadRequest, "unknown status filter")
		return
	}

	items, meta, err := a.pm.ListTasks(r.Context(), filter)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listPayload{Items: items, Page: meta}, "tasks listed")
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermTaskCreate)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.AssigneeID != "" && req.AssigneeID != principal.User.ID {
		if _, ok := a.requirePermission(w, r, auth.PermTaskAssign); !ok {
			return
		}
	}

	task, err := a.pm.CreateTask(r.Context(), pm.Task{
		ProjectID:   strings.TrimSpace(req.ProjectID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    req.Priority,
		CreatorID:   principal.User.ID,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "task.create", "task", task.ID, map[string]any{"project_id": task.ProjectID})
	w.Header().Set("Location", "/api/v1/tasks/"+task.ID)
	writeSuccess(w, http.StatusCreated, task, "task created")
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermTaskRead); !ok {
		return
	}
	task, err := a.pm.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, task, "ok")
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermTaskUpdate); !ok {
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.AssigneeID != nil {
		if _, ok := a.requirePermission(w, r, auth.PermTaskAssign); !ok {
			return
		}
	}

	task, err := a.pm.UpdateTask(r.Context(), r.PathValue("id"), pm.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "task.update", "task", task.ID, nil)
	writeSuccess(w, http.StatusOK, task, "task updated")
}

func (a *API) patchTaskStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermTaskUpdate); !ok {
		return
	}
	var req patchStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.pm.ChangeTaskStatus(r.Context(), r.PathValue("id"), pm.TaskStatus(req.Status))
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "task.status_change", "task", task.ID, map[string]any{"status": req.Status})
	writeSuccess(w, http.StatusOK, task, "task status updated to "+req.Status)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermTaskDelete); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.pm.DeleteTask(r.Context(), id); err != nil {
		handlePMError(w, r, err)
		return
	}
	a.auditEvent(r, "task.delete", "task", id, nil)
	writeSuccess(w, http.StatusOK, nil, "task deleted")
}
