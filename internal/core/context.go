package core

import "context"

type contextKey string

const ctxKeyActor contextKey = "activity_actor"

// Actor identifies who performs an operation, for the activity log.
type Actor struct {
	UserID       string
	Workspace    string
	Organization string
}

// ContextWithActor attaches the acting user to ctx.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the acting user, or an anonymous actor.
// Blank workspace and organization come back as Unassigned.
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(ctxKeyActor).(Actor)
	if a.UserID == "" {
		a.UserID = "anonymous"
	}
	if a.Workspace == "" {
		a.Workspace = Unassigned
	}
	if a.Organization == "" {
		a.Organization = Unassigned
	}
	return a
}
