package auth

import "context"

// Context keys are unexported struct types so no other package can
// collide with them.
type (
	ctxKeyPrincipal struct{}
	ctxKeyToken     struct{}
)

// ContextWithPrincipal returns a context carrying the authenticated
// principal. The authn middleware calls this once per request.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal{}, &p)
}

// PrincipalFromContext reports the principal attached by the authn
// middleware, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ctxKeyPrincipal{}).(*Principal)
	if !ok || p == nil {
		return Principal{}, false
	}
	return *p, true
}

// ContextWithToken carries the raw bearer token alongside the principal
// so handlers that call back into the auth service can reuse it.
func ContextWithToken(ctx context.Context, raw string) context.Context {
	if raw == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyToken{}, raw)
}

// TokenFromContext returns the bearer token stored by ContextWithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	raw, ok := ctx.Value(ctxKeyToken{}).(string)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
