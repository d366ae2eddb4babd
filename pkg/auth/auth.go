// Package auth provides bearer token authentication for the HTTP API.
// Tokens are HS256 JWTs signed with the configured secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
)

// DefaultIssuer is used when the config leaves the issuer empty.
const DefaultIssuer = "bone"

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("auth secret key is not configured")

// Claims are the claims carried by an API token.
type Claims struct {
	jwt.RegisteredClaims
}

type contextKey string

const subjectKey contextKey = "auth_subject"

// Authenticator issues and validates API tokens.
type Authenticator struct {
	log    logrus.FieldLogger
	secret []byte
	issuer string
	now    func() time.Time
}

// New creates an Authenticator from the auth config.
func New(log logrus.FieldLogger, cfg config.AuthConfig) (*Authenticator, error) {
	if cfg.Tokens.SecretKey == "" {
		return nil, ErrMissingSecret
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	return &Authenticator{
		log:    log.WithField("component", "auth"),
		secret: []byte(cfg.Tokens.SecretKey),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for subject. A zero ttl issues a token without expiry.
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}

	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   a.issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Validate parses a token and returns its claims.
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject in the request context.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)

				return
			}

			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)

				return
			}

			claims, err := a.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				a.log.WithError(err).Debug("Token validation failed")
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)

				return
			}

			a.log.WithFields(logrus.Fields{
				"subject": claims.Subject,
				"path":    r.URL.Path,
				"method":  r.Method,
			}).Debug("Authenticated request")

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
		})
	}
}

// WithSubject stores an authenticated subject in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// Subject returns the authenticated subject, or "" for anonymous requests.
func Subject(ctx context.Context) string {
	if v, ok := ctx.Value(subjectKey).(string); ok {
		return v
	}

	return ""
}
