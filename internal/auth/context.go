package auth

import (
	"context"
	"net/http"
	"strings"
)

type ownerKey struct{}

// TokenHeader is the header the web client sends its token in.
const TokenHeader = "x-auth-token"

// WithOwner returns ctx carrying the authenticated user id.
func WithOwner(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, userID)
}

// OwnerFrom returns the authenticated user id, if any.
func OwnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

// TokenFromRequest reads the token from x-auth-token, then an
// "Authorization: Bearer" header, then the token query parameter used by
// websocket clients that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(TokenHeader)); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token by calling onFail and
// otherwise stores the owner in the request context.
func Middleware(tokens *TokenIssuer, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := TokenFromRequest(r)
			if tok == "" {
				onFail(w, r, ErrInvalidToken)
				return
			}
			owner, err := tokens.Verify(tok)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}
