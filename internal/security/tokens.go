package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when a token's signature or structure is invalid.
	ErrTokenMalformed = errors.New("token malformed")
)

// TokenKind distinguishes access from refresh tokens in the kind claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims holds the JWT claims for both token kinds. Subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims
	Role string    `json:"role"`
	Kind TokenKind `json:"kind"`
}

// TokenProvider issues and validates stateless HS256-signed access and refresh tokens.
// Validation is pure: signature and expiry only, no I/O and no revocation list.
type TokenProvider struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given HMAC secret.
func NewTokenProvider(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access token bound to the user's email and role.
func (p *TokenProvider) IssueAccess(email, role string) (token string, expiresAt time.Time, err error) {
	return p.issue(email, role, KindAccess, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh token bound to the user's email and role.
func (p *TokenProvider) IssueRefresh(email, role string) (token string, expiresAt time.Time, err error) {
	return p.issue(email, role, KindRefresh, p.refreshTTL)
}

func (p *TokenProvider) issue(email, role string, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
		Kind: kind,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses and validates a token's signature and expiry.
// Returns ErrTokenExpired when exp has passed and ErrTokenMalformed for any other failure.
func (p *TokenProvider) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if p.issuer != "" && claims.Issuer != p.issuer {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
