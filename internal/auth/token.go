package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in access tokens
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims is the verified identity behind a bearer token.
type Claims struct {
	SubjectID int64
	Role      string
	ExpiresAt time.Time
}

type customClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Sign issues a token for subject with the given role and lifetime.
func (t *TokenIssuer) Sign(subjectID int64, role string, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)

	claims := customClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	return signed, exp, err
}

// Verify parses token and returns its claims.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &customClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	cc, ok := parsed.Claims.(*customClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	id, err := strconv.ParseInt(cc.Subject, 10, 64)
	if err != nil {
		return nil, errors.New("invalid token subject")
	}
	return &Claims{SubjectID: id, Role: cc.Role, ExpiresAt: cc.ExpiresAt.Time}, nil
}
