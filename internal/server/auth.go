package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/wire"
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errMissingSubject     = errors.New("token has no subject")
)

// requestContext returns the request context stored by requireAuth.
func requestContext(ctx context.Context) ir.RequestContext {
	rc, _ := ctx.Value(ctxKeyRequest).(ir.RequestContext)
	return rc
}

// requireAuth identifies the caller and stores an ir.RequestContext before
// calling the handler.
func (s *Server) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, wire.CodeUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyRequest, rc)
		ctx = context.WithValue(ctx, ctxKeyLogger, logFor(ctx).With("user", rc.UserID))
		handler(w, r.WithContext(ctx))
	}
}

// authenticate builds the request context from a bearer JWT (HS256, user id
// in "sub"), or from X-User-ID when no secret is configured. Websocket
// clients that cannot set headers may pass the token as ?access_token=.
func (s *Server) authenticate(r *http.Request) (ir.RequestContext, error) {
	rc := ir.RequestContext{IP: clientIP(r), Time: s.config.Now()}

	if s.config.JWTSecret == "" {
		rc.UserID = strings.TrimSpace(r.Header.Get("X-User-ID"))
		if rc.UserID == "" {
			rc.UserID = r.URL.Query().Get("user")
		}
		if rc.UserID == "" {
			return ir.RequestContext{}, errMissingCredentials
		}
		return rc, nil
	}

	raw := bearerToken(r)
	if raw == "" {
		return ir.RequestContext{}, errMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ir.RequestContext{}, fmt.Errorf("invalid token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return ir.RequestContext{}, errMissingSubject
	}
	rc.UserID = sub
	rc.Claims = map[string]any(claims)
	return rc, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("access_token")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SignToken issues an HS256 token for userID. Used by tests and the CLI.
func SignToken(secret, userID string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID})
	return tok.SignedString([]byte(secret))
}
