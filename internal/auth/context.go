package auth

import "context"

type contextKey string

const principalContextKey contextKey = "principal"

// Principal identifies the authenticated caller recovered from a signed
// header (HTTP) or a verified auth chain (WebSocket handshake).
type Principal struct {
	Address string
}

// WithPrincipal attaches the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the authenticated principal from the
// context. Returns nil if no principal is present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}
