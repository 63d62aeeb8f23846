// Package auth issues and checks journal-scoped access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/clock"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim stamped on every token.
const Issuer = "gophjournal"

// Claims carries the registered claims plus the token scope.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// AccessToken is a freshly minted token. It is never persisted.
type AccessToken struct {
	Token     string
	UserID    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs HS256 tokens with a fixed 15 minute lifetime.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenIssuer builds an issuer. A zero ttl means common.AccessTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration, clk clock.Clock) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is empty")
	}
	if ttl <= 0 {
		ttl = common.AccessTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, clock: clk}, nil
}

// Issue mints a journal-scoped token for userID.
func (i *TokenIssuer) Issue(userID string) (AccessToken, error) {
	// NumericDate has second precision; truncate so exp - iat is exactly ttl.
	iat := i.clock.Now().Truncate(time.Second)
	exp := iat.Add(i.ttl)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Scope: common.JournalScope,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return AccessToken{Token: signed, UserID: userID, ID: jti, IssuedAt: iat, ExpiresAt: exp}, nil
}

// Parse verifies signature, issuer, expiry and scope. It returns
// common.ErrTokenExpired, common.ErrWrongScope or common.ErrInvalidToken.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	case !token.Valid:
		return nil, common.ErrInvalidToken
	}

	if claims.Scope != common.JournalScope {
		return nil, common.ErrWrongScope
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}
	return claims, nil
}
