package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/activity-engine/activity"
	"github.com/warp/activity-engine/logging"
)

// AuthConfig holds bearer token verification parameters.
// An empty Secret disables verification.
type AuthConfig struct {
	Secret string
	Issuer string
}

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken wraps parsing and validation errors.
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrAdminRequired is returned for shared-data writes by operator sessions.
	ErrAdminRequired = errors.New("admin session required")
)

type sessionKey struct{}

// anonymous is used when auth is disabled. It may act for any operator.
var anonymous = activity.Session{Subject: "anonymous", Admin: true}

// SessionFrom returns the session attached by Authenticate.
func SessionFrom(ctx context.Context) activity.Session {
	if s, ok := ctx.Value(sessionKey{}).(activity.Session); ok {
		return s
	}
	return anonymous
}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s activity.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// ParseSession validates an HS256 token and maps its claims to a session.
// Claims: sub (required), operator_id, name, admin.
func ParseSession(token string, cfg AuthConfig) (activity.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return activity.Session{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return activity.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return activity.Session{}, ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return activity.Session{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	operatorID, _ := claims["operator_id"].(string)
	name, _ := claims["name"].(string)
	admin, _ := claims["admin"].(bool)

	return activity.Session{Subject: subject, OperatorID: operatorID, OperatorName: name, Admin: admin}, nil
}

// Authenticate verifies the bearer token and attaches the session.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Secret == "" {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), anonymous)))
				return
			}
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				token = ""
			}
			session, err := ParseSession(token, cfg)
			if err != nil {
				logging.C(r.Context()).Debug().Err(err).Msg("rejected token")
				writeError(w, http.StatusUnauthorized, "unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// RequireAdmin rejects sessions without the admin claim. It runs after
// Authenticate, so the anonymous session passes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFrom(r.Context()).Admin {
			writeError(w, http.StatusForbidden, "admin session required", ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
