package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/store"
)

// Validator is the part of *fastauth.Engine the guards need.
type Validator interface {
	ValidateAccessToken(ctx context.Context, token string) (*fastauth.Claims, error)
}

// UserValidator also resolves the account behind a token.
type UserValidator interface {
	Validator
	User(ctx context.Context, userID string) (*store.User, error)
}

type claimsContextKey struct{}
type userContextKey struct{}

func ClaimsFromContext(ctx context.Context) (*fastauth.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*fastauth.Claims)
	return c, ok
}

// UserFromContext returns the account loaded by [RequireUser].
func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*store.User)
	return u, ok
}

// Guard rejects requests without a valid bearer token with 401.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, v)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional attaches claims when a valid token is present and otherwise
// serves the request anonymously. A present but invalid token is still
// rejected.
func Optional(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := authenticate(w, r, v)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser is Guard plus a user lookup.
func RequireUser(v UserValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, v)
			if !ok {
				return
			}
			u, err := v.User(r.Context(), claims.UserID)
			if errors.Is(err, fastauth.ErrUserNotFound) {
				unauthorized(w, err)
				return
			}
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			ctx = context.WithValue(ctx, userContextKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestMeta records the client address and User-Agent for audit events.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMeta(r)))
	})
}

func authenticate(w http.ResponseWriter, r *http.Request, v Validator) (*fastauth.Claims, bool) {
	if v == nil {
		unauthorized(w, nil)
		return nil, false
	}
	token, ok := BearerToken(r)
	if !ok {
		unauthorized(w, nil)
		return nil, false
	}
	claims, err := v.ValidateAccessToken(r.Context(), token)
	switch {
	case err == nil:
		return claims, true
	case errors.Is(err, fastauth.ErrEngineNotReady):
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		unauthorized(w, err)
	}
	return nil, false
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", Challenge(err))
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "bearer "
	value := r.Header.Get("Authorization")
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// Challenge returns the WWW-Authenticate value for a rejected request. A nil
// err means no token was presented.
func Challenge(err error) string {
	switch {
	case err == nil:
		return "Bearer"
	case errors.Is(err, fastauth.ErrTokenExpired):
		return `Bearer error="expired_token"`
	default:
		return `Bearer error="invalid_token"`
	}
}

// WithRequestMeta returns r's context carrying the client IP and User-Agent
// for audit events.
func WithRequestMeta(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = fastauth.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = fastauth.WithUserAgent(ctx, ua)
	}
	return ctx
}

// clientIP uses RemoteAddr only. Forwarding headers are left to a proxy
// aware middleware earlier in the chain.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
