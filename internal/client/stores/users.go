package stores

import (
	"context"
	"net/url"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/pm"
)

// UserInput is the creation payload. Password is write-only; the server
// never echoes it back.
type UserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

// UserPatch is the partial update payload.
type UserPatch struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// UserStore caches the current user page.
type UserStore struct {
	gw    *gateway.Client
	cache *cache[auth.User]
}

func NewUserStore(gw *gateway.Client) *UserStore {
	return &UserStore{
		gw:    gw,
		cache: newCache(func(u auth.User) string { return u.ID }),
	}
}

func (s *UserStore) List(ctx context.Context, page, pageSize int) ([]auth.User, pm.Page, error) {
	q := url.Values{}
	setPaging(q, page, pageSize)

	var payload listPayload[auth.User]
	if err := s.gw.Get(ctx, "/api/v1/users"+query(q), &payload); err != nil {
		return nil, pm.Page{}, err
	}
	s.cache.replaceAll(payload.Items, payload.Page)
	items, pg := s.cache.snapshot()
	return items, pg, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (auth.User, error) {
	if u, ok := s.cache.find(id); ok {
		return u, nil
	}
	var u auth.User
	if err := s.gw.Get(ctx, "/api/v1/users/"+id, &u); err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, in UserInput) (auth.User, error) {
	var u auth.User
	if err := s.gw.Post(ctx, "/api/v1/users", in, &u); err != nil {
		return auth.User{}, err
	}
	s.cache.prepend(u)
	return u, nil
}

func (s *UserStore) Update(ctx context.Context, id string, patch UserPatch) (auth.User, error) {
	var u auth.User
	if err := s.gw.Put(ctx, "/api/v1/users/"+id, patch, &u); err != nil {
		return auth.User{}, err
	}
	s.cache.replace(u)
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if err := s.gw.Delete(ctx, "/api/v1/users/"+id); err != nil {
		return err
	}
	s.cache.remove(id)
	return nil
}

func (s *UserStore) Cached() ([]auth.User, pm.Page) {
	return s.cache.snapshot()
}
