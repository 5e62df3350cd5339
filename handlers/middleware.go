package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// ActorContextKey is the key used to store the authenticated actor in the request context.
	ActorContextKey ContextKey = "actor"

	// WildcardPermission grants every permission.
	WildcardPermission = "*"

	tokenIssuer = "attendancebackend"
)

// Claims are the token claims. Subject carries the actor's numeric ID; SubjectID links
// the actor to the tracked subject they may act for without the global permission.
type Claims struct {
	Permissions []string `json:"permissions"`
	SubjectID   *uint    `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller of a request.
type Actor struct {
	ID          uint
	SubjectID   *uint
	permissions map[string]struct{}
}

func (a *Actor) HasPermission(permission string) bool {
	if a == nil {
		return false
	}
	if _, ok := a.permissions[WildcardPermission]; ok {
		return true
	}
	_, ok := a.permissions[permission]
	return ok
}

// CanActFor reports whether the actor holds permission or is linked to the subject.
func (a *Actor) CanActFor(permission string, subjectID uint) bool {
	if a.HasPermission(permission) {
		return true
	}
	return a != nil && a.SubjectID != nil && *a.SubjectID == subjectID
}

func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(*Actor)
	return actor, ok && actor != nil
}

// IssueToken signs an HS256 token for actorID.
func IssueToken(secret []byte, actorID uint, permissions []string, subjectID *uint, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Permissions: permissions,
		SubjectID:   subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(actorID), 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies a signed token and returns the actor it describes.
func ParseToken(secret []byte, tokenString string) (*Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid actor id in token subject %q", claims.Subject)
	}
	actor := &Actor{ID: uint(id), SubjectID: claims.SubjectID, permissions: make(map[string]struct{}, len(claims.Permissions))}
	for _, p := range claims.Permissions {
		actor.permissions[p] = struct{}{}
	}
	return actor, nil
}

// AuthMiddleware verifies the bearer token and puts the actor in the request context.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := tokenFromRequest(r)
			if err != nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}

			actor, err := ParseToken(secret, tokenString)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					WriteAPIError(w, http.StatusUnauthorized, "token_expired", "token has expired")
					return
				}
				WriteAPIError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ActorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest reads the bearer token. Websocket clients cannot set headers, so the
// access_token query parameter is accepted when the header is absent.
func tokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}

// RequirePermission rejects requests whose actor lacks permission. It must run after
// AuthMiddleware.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
				return
			}
			if !actor.HasPermission(permission) {
				WriteAPIError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("requires permission '%s'", permission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authorizeSubject writes a 403 and returns false unless the actor may act for subjectID.
func authorizeSubject(w http.ResponseWriter, r *http.Request, permission string, subjectID uint) (*Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
		return nil, false
	}
	if !actor.CanActFor(permission, subjectID) {
		WriteAPIError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("requires permission '%s' or a token for subject %d", permission, subjectID))
		return nil, false
	}
	return actor, true
}
