package httpapi

import (
	"net/http"
	"strings"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/pm"
)

type createSupplierRequest struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Category    string `json:"category"`
	Rating      int    `json:"rating"`
	Notes       string `json:"notes"`
}

type updateSupplierRequest struct {
	Name        *string `json:"name"`
	ContactName *string `json:"contact_name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Category    *string `json:"category"`
	Rating      *int    `json:"rating"`
	Active      *bool   `json:"active"`
	Notes       *string `json:"notes"`
}

func (a *API) listSuppliers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermSupplierRead); !ok {
		return
	}
	page, pageSize, err := parsePaging(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, meta, err := a.pm.ListSuppliers(r.Context(), pm.SupplierFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listPayload{Items: items, Page: meta}, "suppliers listed")
}

func (a *API) createSupplier(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermSupplierCreate); !ok {
		return
	}
	var req createSupplierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	supplier, err := a.pm.CreateSupplier(r.Context(), pm.Supplier{
		Name:        strings.TrimSpace(req.Name),
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Category:    req.Category,
		Rating:      req.Rating,
		Notes:       req.Notes,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "supplier.create", "supplier", supplier.ID, nil)
	w.Header().Set("Location", "/api/v1/suppliers/"+supplier.ID)
	writeSuccess(w, http.StatusCreated, supplier, "supplier created")
}

func (a *API) getSupplier(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermSupplierRead); !ok {
		return
	}
	supplier, err := a.pm.GetSupplier(r.Context(), r.PathValue("id"))
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, supplier, "ok")
}

func (a *API) updateSupplier(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermSupplierUpdate); !ok {
		return
	}
	var req updateSupplierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	supplier, err := a.pm.UpdateSupplier(r.Context(), r.PathValue("id"), pm.SupplierUpdate{
		Name:        req.Name,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Category:    req.Category,
		Rating:      req.Rating,
		Active:      req.Active,
		Notes:       req.Notes,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.auditEvent(r, "supplier.update", "supplier", supplier.ID, nil)
	writeSuccess(w, http.StatusOK, supplier, "supplier updated")
}

func (a *API) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermSupplierDelete); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.pm.DeleteSupplier(r.Context(), id); err != nil {
		handlePMError(w, r, err)
		return
	}
	a.auditEvent(r, "supplier.delete", "supplier", id, nil)
	writeSuccess(w, http.StatusOK, nil, "supplier deleted")
}
