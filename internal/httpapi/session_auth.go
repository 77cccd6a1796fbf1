package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Context key for session data
type contextKey string

const sessionContextKey contextKey = "session"

// SessionClaims are the claims of a practice session bearer token. A token
// grants access to exactly one session.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// issueSessionToken creates a signed token for a session
func (r *Router) issueSessionToken(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(r.cfg.SessionTTL)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// parseSessionToken validates a token and returns its session ID
func (r *Router) parseSessionToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.SessionID, nil
}

// bearerToken reads the token from the Authorization header. Browsers cannot
// set headers on websocket upgrades, so the token query parameter is
// accepted as well.
func bearerToken(req *http.Request) (string, bool) {
	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := req.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// withSession is middleware that requires a valid token for the session in the path
func (r *Router) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tokenString, ok := bearerToken(req)
		if !ok {
			http.Error(w, `{"error": "missing session token"}`, http.StatusUnauthorized)
			return
		}

		sessionID, err := r.parseSessionToken(tokenString)
		if err != nil {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}
		if sessionID != req.PathValue("id") {
			http.Error(w, `{"error": "token does not match session"}`, http.StatusForbidden)
			return
		}

		sess, ok := r.sessions.get(sessionID)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		ctx := context.WithValue(req.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// getSession extracts the authenticated session from context
func getSession(ctx context.Context) *practiceSession {
	sess, _ := ctx.Value(sessionContextKey).(*practiceSession)
	return sess
}
