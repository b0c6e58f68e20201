package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/okian/demonlist/internal/domain/permissions"
)

// Claims is the bearer token payload. The subject is the user id.
type Claims struct {
	Name        string `json:"name"`
	Permissions uint16 `json:"perms"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	key    []byte
	issuer string
}

// NewTokens returns a token service. An empty secret verifies nothing.
func NewTokens(secret, issuer string) *Tokens {
	return &Tokens{key: []byte(secret), issuer: issuer}
}

// Issue signs a token for id valid for ttl.
func (t *Tokens) Issue(id permissions.Identity, ttl time.Duration) (string, error) {
	if len(t.key) == 0 {
		return "", errors.New("token signing is disabled")
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:        id.Name,
		Permissions: uint16(id.Permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return tok.SignedString(t.key)
}

// Verify parses a token into an identity.
func (t *Tokens) Verify(raw string) (permissions.Identity, error) {
	if len(t.key) == 0 {
		return permissions.Anonymous, unauthorized("token authentication is disabled")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return permissions.Anonymous, unauthorized("token has expired")
		}
		return permissions.Anonymous, unauthorized("invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return permissions.Anonymous, unauthorized("invalid token claims")
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return permissions.Anonymous, unauthorized(fmt.Sprintf("invalid subject %q", claims.Subject))
	}
	return permissions.Identity{
		UserID:      uid,
		Name:        claims.Name,
		Permissions: permissions.Set(claims.Permissions),
	}, nil
}

type identityKey struct{}

// IdentityFrom returns the caller identity, anonymous when none was set.
func IdentityFrom(ctx context.Context) permissions.Identity {
	if id, ok := ctx.Value(identityKey{}).(permissions.Identity); ok {
		return id
	}
	return permissions.Anonymous
}

// authenticate resolves the bearer token. No header means anonymous; a
// header that does not verify is rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			s.fail(w, r, unauthorized("authorization header must use the Bearer scheme"))
			return
		}
		id, err := s.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}
