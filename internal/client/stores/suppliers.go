package stores

import (
	"context"
	"net/url"

	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/pm"
)

// SupplierInput is the creation payload.
type SupplierInput struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Category    string `json:"category,omitempty"`
	Rating      int    `json:"rating,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// SupplierPatch is the partial update payload.
type SupplierPatch struct {
	Name        *string `json:"name,omitempty"`
	ContactName *string `json:"contact_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Category    *string `json:"category,omitempty"`
	Rating      *int    `json:"rating,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// SupplierStore caches the current supplier page.
type SupplierStore struct {
	gw    *gateway.Client
	cache *cache[pm.Supplier]
}

func NewSupplierStore(gw *gateway.Client) *SupplierStore {
	return &SupplierStore{
		gw:    gw,
		cache: newCache(func(s pm.Supplier) string { return s.ID }),
	}
}

func (s *SupplierStore) List(ctx context.Context, f pm.SupplierFilter) ([]pm.Supplier, pm.Page, error) {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	setPaging(q, f.Page, f.PageSize)

	var payload listPayload[pm.Supplier]
	if err := s.gw.Get(ctx, "/api/v1/suppliers"+query(q), &payload); err != nil {
		return nil, pm.Page{}, err
	}
	s.cache.replaceAll(payload.Items, payload.Page)
	items, page := s.cache.snapshot()
	return items, page, nil
}

func (s *SupplierStore) Get(ctx context.Context, id string) (pm.Supplier, error) {
	if sup, ok := s.cache.find(id); ok {
		return sup, nil
	}
	var sup pm.Supplier
	if err := s.gw.Get(ctx, "/api/v1/suppliers/"+id, &sup); err != nil {
		return pm.Supplier{}, err
	}
	return sup, nil
}

func (s *SupplierStore) Create(ctx context.Context, in SupplierInput) (pm.Supplier, error) {
	var sup pm.Supplier
	if err := s.gw.Post(ctx, "/api/v1/suppliers", in, &sup); err != nil {
		return pm.Supplier{}, err
	}
	s.cache.prepend(sup)
	return sup, nil
}

func (s *SupplierStore) Update(ctx context.Context, id string, patch SupplierPatch) (pm.Supplier, error) {
	var sup pm.Supplier
	if err := s.gw.Put(ctx, "/api/v1/suppliers/"+id, patch, &sup); err != nil {
		return pm.Supplier{}, err
	}
	s.cache.replace(sup)
	return sup, nil
}

func (s *SupplierStore) Delete(ctx context.Context, id string) error {
	if err := s.gw.Delete(ctx, "/api/v1/suppliers/"+id); err != nil {
		return err
	}
	s.cache.remove(id)
	return nil
}

func (s *SupplierStore) Cached() ([]pm.Supplier, pm.Page) {
	return s.cache.snapshot()
}
