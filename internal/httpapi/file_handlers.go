package httpapi

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/pm"
)

func (a *API) listProjectFiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermFileRead); !ok {
		return
	}
	files, err := a.pm.ListProjectFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, files, "files listed")
}

func (a *API) uploadProjectFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermFileUpload)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, pm.MaxFileBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	created, err := a.pm.AddProjectFile(r.Context(), pm.ProjectFile{
		ProjectID:   r.PathValue("id"),
		Filename:    filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		UploaderID:  principal.User.ID,
		Content:     content,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "file.upload", "project_file", created.ID, map[string]any{
		"project_id": created.ProjectID,
		"filename":   created.Filename,
		"size":       created.Size,
	})
	created.Content = nil
	w.Header().Set("Location", "/api/v1/projects/"+created.ProjectID+"/files/"+created.ID)
	writeSuccess(w, http.StatusCreated, created, "file uploaded")
}

// downloadProjectFile streams the stored bytes raw, without the JSON
// envelope, so clients can write them straight to disk.
func (a *API) downloadProjectFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermFileRead); !ok {
		return
	}
	f, err := a.pm.GetProjectFile(r.Context(), r.PathValue("id"), r.PathValue("fileID"))
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Filename+`"`)
	_, _ = w.Write(f.Content)
}

func (a *API) deleteProjectFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermFileDelete); !ok {
		return
	}
	projectID, fileID := r.PathValue("id"), r.PathValue("fileID")
	if err := a.pm.DeleteProjectFile(r.Context(), projectID, fileID); err != nil {
		handlePMError(w, r, err)
		return
	}
	a.auditEvent(r, "file.delete", "project_file", fileID, map[string]any{"project_id": projectID})
	writeSuccess(w, http.StatusOK, nil, "file deleted")
}
