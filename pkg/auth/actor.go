package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Actor is the resolved identity performing an operation. Core services
// take the actor as an explicit parameter; permission checks are expressed
// purely in terms of the resolved Role, never raw group names.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the actor holds the Admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type contextKey string

// ActorKey is the context key for the resolved actor.
const ActorKey contextKey = "actor"

// GetActor retrieves the resolved actor from context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(Actor)
	return actor, ok
}

// SetActor stores the resolved actor in context.
func SetActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// RequireActor extracts the actor from context and errors if absent.
func RequireActor(ctx context.Context) (Actor, error) {
	actor, ok := GetActor(ctx)
	if !ok {
		return Actor{}, fmt.Errorf("no actor in context")
	}
	return actor, nil
}
