package guard

import (
	"context"
	"encoding/json"
	"net/http"

	"concord/internal/session"
)

type contextKey struct{}

// SessionFrom returns the session the guard authorized for this request, or
// nil outside a protected region.
func SessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(contextKey{}).(*session.Session)
	return sess
}

// RequireSession is the protected-region wrapper: it runs the guard state
// machine for each request and only lets authorized ones through, with the
// authorizing session on the request context.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Evaluate(r.Context())
		switch decision.State {
		case StateAuthorized:
			ctx := context.WithValue(r.Context(), contextKey{}, decision.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		case StateError:
			writeGuardError(w, http.StatusServiceUnavailable, "session resolution failed")
		default:
			writeGuardError(w, http.StatusUnauthorized, "sign-in required")
		}
	})
}

func writeGuardError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
