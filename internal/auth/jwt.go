package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"github.com/lox/hotpotato/internal/potato"
)

const (
	claimAccount = "acct"
	issuer       = "hotpotato"
)

// JWTValidator issues and checks HS256 tokens signed with a shared secret.
type JWTValidator struct {
	secret []byte
	now    func() time.Time
}

// NewJWTValidator creates a validator for tokens signed with secret
func NewJWTValidator(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &JWTValidator{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for name that expires after ttl
func (v *JWTValidator) Issue(name string, ttl time.Duration) (string, error) {
	if name == "" {
		return "", errors.New("auth: name is required")
	}
	now := v.now()
	claims := jwt.MapClaims{
		"iss":        issuer,
		"sub":        name,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		claimAccount: potato.AccountFromName(name).String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *JWTValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(issuer, true) {
		return nil, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}
	// exp is required, not just honoured when present
	if !claims.VerifyExpiresAt(v.now().Unix(), true) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	name, _ := claims["sub"].(string)
	acct, _ := claims[claimAccount].(string)
	if name == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	account, err := potato.ParseAccount(acct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Identity{Account: account, Name: name}, nil
}
