package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity headers set by the upstream identity provider (reverse proxy
// or gateway). The engine trusts these; it never sees raw credentials.
const (
	HeaderUserID    = "X-User-ID"
	HeaderGroups    = "X-User-Groups"
	HeaderSuperuser = "X-Superuser"
)

// Middleware resolves the acting user from identity headers and places
// the Actor in the request context.
type Middleware struct {
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(logger *zap.Logger) *Middleware {
	return &Middleware{logger: logger}
}

// RequireActor rejects requests without a valid user identity and resolves
// the actor's role for downstream handlers.
func (m *Middleware) RequireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		var groups []string
		if raw := r.Header.Get(HeaderGroups); raw != "" {
			for _, g := range strings.Split(raw, ",") {
				if g = strings.TrimSpace(g); g != "" {
					groups = append(groups, g)
				}
			}
		}
		superuser := strings.EqualFold(r.Header.Get(HeaderSuperuser), "true")

		actor := Actor{
			UserID: userID,
			Role:   ResolveRole(groups, superuser),
		}

		next(w, r.WithContext(SetActor(r.Context(), actor)))
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to write unauthorized response", zap.Error(err))
	}
}
