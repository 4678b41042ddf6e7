package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/auth"
)

// Authenticator validates BFF access tokens.
type Authenticator interface {
	Authenticate(token string) (*auth.JWTClaims, error)
}

// Principal is the authenticated caller, taken from the access token.
type Principal struct {
	SessionID string
	UserID    int64
	Role      auth.Role
}

type principalKey struct{}

// Auth creates authentication middleware that validates JWT bearer tokens.
// The session itself is resolved by the handlers.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "missing authorization header"))
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "invalid authorization header format"))
				return
			}

			tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
			if tokenString == "" {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "missing bearer token"))
				return
			}

			claims, err := authenticator.Authenticate(tokenString)
			if err != nil {
				detail := "authentication failed"
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					detail = "access token has expired"
				case errors.Is(err, auth.ErrInvalidAccessToken):
					detail = "invalid access token"
				}
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				SessionID: claims.SessionID,
				UserID:    claims.UserID,
				Role:      claims.Role,
			})
			uid := strconv.FormatInt(claims.UserID, 10)
			noteUser(ctx, uid)
			trace.SpanFromContext(ctx).SetAttributes(
				attribute.String("enduser.id", uid),
				attribute.String("enduser.role", string(claims.Role)),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is below min. It must run after Auth.
func RequireRole(min auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "authentication required"))
				return
			}
			if !p.Role.Allows(min) {
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "requires role "+string(min)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal retrieves the authenticated caller from the context.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// GetSessionID returns the caller's session ID, or "" when unauthenticated.
func GetSessionID(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.SessionID
}

// GetUserID returns the caller's backend user ID as a string, or "" when
// unauthenticated.
func GetUserID(ctx context.Context) string {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return ""
	}
	return strconv.FormatInt(p.UserID, 10)
}

// writeProblem writes a problem without the response package, which imports
// this one.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}
