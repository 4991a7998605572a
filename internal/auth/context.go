package auth

import (
	"context"
	"strings"
)

type contextKey string

const authorIDKey contextKey = "authorID"

// ContextWithAuthorID returns a new context that carries the
// authenticated editor identity.
func ContextWithAuthorID(ctx context.Context, authorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, authorIDKey, authorID)
}

// AuthorIDFromContext retrieves the authenticated editor identity from
// the context, if any.
func AuthorIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value := ctx.Value(authorIDKey)
	if value == nil {
		return "", false
	}
	authorID, ok := value.(string)
	if !ok || strings.TrimSpace(authorID) == "" {
		return "", false
	}
	return authorID, true
}

// ResolveAuthor prefers the authenticated identity over the one supplied
// in a request body; unauthenticated callers fall back to the latter.
func ResolveAuthor(ctx context.Context, requested string) string {
	if authorID, ok := AuthorIDFromContext(ctx); ok {
		return authorID
	}
	return strings.TrimSpace(requested)
}
