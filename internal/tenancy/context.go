package tenancy

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor in context. This exists for
// the HTTP boundary only; services receive the actor as a parameter.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
