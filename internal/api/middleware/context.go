package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	keyPrefixKey contextKey = "key_prefix"
	keyTierKey   contextKey = "key_tier"
	scopesKey    contextKey = "api_key_scopes"
	traceIDKey   contextKey = "trace_id"
)

func setTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID returns the request's trace id, or "" outside the logger.
func TraceID(r *http.Request) string {
	id, _ := r.Context().Value(traceIDKey).(string)
	return id
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, keyTierKey, tier)
}

func getTier(r *http.Request) (string, bool) {
	tier, ok := r.Context().Value(keyTierKey).(string)
	return tier, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return scopes
}

// WithAuthContext seeds the request context the way Authenticate would,
// for handler tests that bypass the middleware.
func WithAuthContext(ctx context.Context, prefix, tier string, scopes []string) context.Context {
	ctx = setKeyPrefix(ctx, prefix)
	ctx = setTier(ctx, tier)
	return setScopes(ctx, scopes)
}
