package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sixjars/internal/log"
)

// AuthConfig verifies bearer tokens issued by the identity provider. The
// token subject is the opaque user id.
type AuthConfig struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
}

type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

type userKey struct{}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Authenticator{secret: cfg.Secret, parser: jwt.NewParser(opts...)}
}

// Authenticate returns the user id carried by the request's bearer token.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}
	if len(a.secret) == 0 {
		return "", errInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", errInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// Middleware rejects unauthenticated requests with 401 and stores the
// user id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Authenticate(r)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Authentication failed", log.FieldError, err.Error())
			w.Header().Set("WWW-Authenticate", `Bearer realm="sixjars"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, userID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).ForUser(userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user, or "" outside the auth middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
