package api

import (
	"context"
	"net/http"
	"strings"

	"clipriver/internal/auth"
)

type contextKey string

const identityContextKey contextKey = "authenticatedIdentity"

// ContextWithIdentity stores the verified token claims on the context.
func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the verified token claims, if any.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(auth.Identity)
	return identity, ok
}

// ExtractToken pulls the bearer credential from the Authorization header.
func ExtractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireIdentity returns the caller's claims or writes the 401 body. The
// auth middleware normally populates the context first; this is the
// handler-level backstop.
func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return auth.Identity{}, false
	}
	return identity, true
}
