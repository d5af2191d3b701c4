package context

import (
	"context"
)

// Actor identifies who performs an operation. Authentication happens
// upstream; the API only carries the identity it was given.
type Actor struct {
	UserID string
	Name   string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorName returns the display name of the actor, falling back to
// the user id, or "system" when nothing is set.
func GetActorName(ctx context.Context) string {
	a := GetActor(ctx)
	switch {
	case a == nil:
		return "system"
	case a.Name != "":
		return a.Name
	case a.UserID != "":
		return a.UserID
	}
	return "system"
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}
