package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/pm"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv("CRAFTDESK_AUTH_SECRET", "httpapi-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	store := auth.NewInMemoryStore()
	for _, u := range []struct {
		username string
		role     auth.Role
	}{
		{"root", auth.RoleAdmin},
		{"dina", auth.RoleDesigner},
		{"vera", auth.RoleViewer},
	} {
		hash, err := auth.HashPassword(u.username + "-password")
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		user := &auth.User{Username: u.username, PasswordHash: hash, Role: u.role, Active: true}
		if err := store.Users().Create(context.Background(), user); err != nil {
			t.Fatalf("seed user %s: %v", u.username, err)
		}
	}

	authSvc, err := auth.NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(ReadyProbe{}, "test", authSvc, pm.NewInMemory())
	return api.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
		Code    int             `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v (data %s)", err, env.Data)
		}
	}
}

func login(t *testing.T, h http.Handler, username, password string) sessionResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var sess sessionResponse
	decodeData(t, rec, &sess)
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("login %s: incomplete session %+v", username, sess)
	}
	return sess
}

func TestHealthzIsPublic(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "root",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	var fail failure
	if err := json.Unmarshal(rec.Body.Bytes(), &fail); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if fail.Message == "" {
		t.Fatalf("empty failure message")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/projects", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/projects", "not.a.token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", rec.Code)
	}
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "root", "root-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", sess.AccessToken, map[string]any{
		"name":          "Mall entrance sign",
		"customer_name": "Westfield",
		"quoted_price":  350000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc == "" {
		t.Fatalf("missing Location header")
	}
	var project pm.Project
	decodeData(t, rec, &project)
	if project.Status != pm.StatusPendingQuote {
		t.Fatalf("status = %s", project.Status)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/projects/"+project.ID, sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPut, "/api/v1/projects/"+project.ID, sess.AccessToken, map[string]any{
		"notes": "rush order",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/projects/"+project.ID+"/status", sess.AccessToken, map[string]string{
		"status": "quoting",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status: status %d body %s", rec.Code, rec.Body.String())
	}

	// In-flight projects cannot be deleted.
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/projects/"+project.ID, sess.AccessToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete quoting: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/projects/"+project.ID+"/status", sess.AccessToken, map[string]string{
		"status": "cancelled",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/projects/"+project.ID, sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete cancelled: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/projects/"+project.ID, sess.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "root", "root-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", sess.AccessToken, map[string]any{
		"name":          "Shortcut",
		"customer_name": "Acme",
	})
	var project pm.Project
	decodeData(t, rec, &project)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/projects/"+project.ID+"/status", sess.AccessToken, map[string]string{
		"status": "completed",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("pending_quote -> completed: status %d, want 400", rec.Code)
	}
}

func TestViewerCannotCreateProjects(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "vera", "vera-password")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/projects", sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer list: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/projects", sess.AccessToken, map[string]any{
		"name":          "Forbidden",
		"customer_name": "Acme",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer create: status %d, want 403", rec.Code)
	}
}

func TestFinancialFieldsNeedCapability(t *testing.T) {
	h := newTestHandler(t)
	admin := login(t, h, "root", "root-password")
	designer := login(t, h, "dina", "dina-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", admin.AccessToken, map[string]any{
		"name":          "Billboard",
		"customer_name": "Acme",
	})
	var project pm.Project
	decodeData(t, rec, &project)

	// Designers may edit projects but not financial fields.
	rec = doJSON(t, h, http.MethodPut, "/api/v1/projects/"+project.ID, designer.AccessToken, map[string]any{
		"final_price": 990000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("designer financial update: status %d, want 403", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPut, "/api/v1/projects/"+project.ID, designer.AccessToken, map[string]any{
		"notes": "two revisions approved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("designer regular update: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPut, "/api/v1/projects/"+project.ID, admin.AccessToken, map[string]any{
		"final_price": 990000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin financial update: status %d", rec.Code)
	}
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "root", "root-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}
	var rotated sessionResponse
	decodeData(t, rec, &rotated)
	if rotated.RefreshToken == sess.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: status %d, want 401", rec.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "root", "root-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status %d, want 401", rec.Code)
	}

	// Logout is idempotent, even with an unknown token.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second logout: status %d", rec.Code)
	}
}

func TestCurrentUser(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "dina", "dina-password")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/auth/current-user", sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var user auth.User
	decodeData(t, rec, &user)
	if user.Username != "dina" || user.Role != auth.RoleDesigner {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestTasksBoundToProjects(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "root", "root-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/tasks", sess.AccessToken, map[string]any{
		"project_id": "missing",
		"title":      "orphan",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("orphan task: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/projects", sess.AccessToken, map[string]any{
		"name":          "With tasks",
		"customer_name": "Acme",
	})
	var project pm.Project
	decodeData(t, rec, &project)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/tasks", sess.AccessToken, map[string]any{
		"project_id": project.ID,
		"title":      "print banner",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: status %d body %s", rec.Code, rec.Body.String())
	}
	var task pm.Task
	decodeData(t, rec, &task)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", sess.AccessToken, map[string]string{
		"status": "in_progress",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("task status: status %d", rec.Code)
	}
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	h := newTestHandler(t)
	admin := login(t, h, "root", "root-password")
	viewer := login(t, h, "vera", "vera-password")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users", viewer.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer list users: status %d, want 403", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users", admin.AccessToken, map[string]any{
		"username": "marat",
		"password": "marat-password",
		"role":     "sales",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users", admin.AccessToken, map[string]any{
		"username": "marat",
		"password": "other-password",
		"role":     "sales",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate username: status %d, want 400", rec.Code)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	sess := login(t, h, "root", "root-password")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", sess.AccessToken, map[string]any{
		"name":          "Counted",
		"customer_name": "Acme",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/projects/statistics", sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics: status %d", rec.Code)
	}
	var stats pm.Statistics
	decodeData(t, rec, &stats)
	if stats.TotalProjects != 1 {
		t.Fatalf("total projects = %d", stats.TotalProjects)
	}
}
