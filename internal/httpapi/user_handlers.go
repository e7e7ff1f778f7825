package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/pm"
)

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
		return
	}
	page, pageSize, err := parsePaging(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, total, err := a.auth.Users().List(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listPayload{Items: users, Page: pm.NewPage(page, pageSize, total)}, "users listed")
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermUserCreate); !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "username and a password of at least 8 characters are required")
		return
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown role: "+req.Role)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	user := &auth.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(strings.ToLower(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := a.auth.Users().Create(r.Context(), user); err != nil {
		handleAuthError(w, r, err)
		return
	}

	a.auditEvent(r, "user.create", "user", user.ID, map[string]any{"username": user.Username, "role": string(role)})
	w.Header().Set("Location", "/api/v1/users/"+user.ID)
	writeSuccess(w, http.StatusCreated, user, "user created")
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
		return
	}
	user, err := a.auth.Users().Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, "ok")
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermUserUpdate)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Users().Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(strings.ToLower(*req.Email))
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		// Role changes are reserved for operators and never apply to the
		// caller's own account.
		if principal.User.Role != auth.RoleAdmin {
			writeError(w, r, http.StatusForbidden, "only admin may change roles")
			return
		}
		if user.ID == principal.User.ID {
			writeError(w, r, http.StatusBadRequest, "cannot change own role")
			return
		}
		role, ok := auth.ParseRole(*req.Role)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown role: "+*req.Role)
			return
		}
		user.Role = role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := a.auth.Users().Update(r.Context(), user); err != nil {
		handleAuthError(w, r, err)
		return
	}
	if req.Active != nil && !*req.Active {
		_ = a.auth.RevokeAll(r.Context(), user.ID)
	}

	a.auditEvent(r, "user.update", "user", user.ID, nil)
	writeSuccess(w, http.StatusOK, user, "user updated")
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermUserDelete)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == principal.User.ID {
		writeError(w, r, http.StatusBadRequest, "cannot delete own account")
		return
	}
	if err := a.auth.Users().Delete(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = a.auth.RevokeAll(r.Context(), id)
	a.auditEvent(r, "user.delete", "user", id, nil)
	writeSuccess(w, http.StatusOK, nil, "user deleted")
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, "username already taken")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
