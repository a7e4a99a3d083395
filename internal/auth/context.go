// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"

	"github.com/DukeRupert/notebook/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	principalContextKey contextKey = "principal"
	tokenContextKey     contextKey = "session_token"
)

// GetUser retrieves the authenticated principal from the context.
//
// Returns nil if the request is anonymous.
//
// Usage:
//
//	p := auth.GetUser(r.Context())
//	if p == nil {
//	    // Handle unauthenticated request
//	}
func GetUser(ctx context.Context) *domain.Principal {
	p, ok := ctx.Value(principalContextKey).(*domain.Principal)
	if !ok {
		return nil
	}
	return p
}

// SetUser stores a principal in the context.
func SetUser(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// GetSessionToken returns the raw session token that authenticated the request.
func GetSessionToken(ctx context.Context) string {
	t, _ := ctx.Value(tokenContextKey).(string)
	return t
}

// SetSessionToken stores the raw session token in the context.
func SetSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}
