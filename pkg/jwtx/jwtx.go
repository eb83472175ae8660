// Package jwtx mints and verifies the HS256 session tokens handed out after
// a successful Telegram initData verification.
package jwtx

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime of a wallet session token.
const DefaultSessionTTL = 15 * time.Minute

var (
	ErrExpired  = errors.New("jwtx: token expired")
	ErrIssuer   = errors.New("jwtx: unexpected issuer")
	ErrInvalid  = errors.New("jwtx: invalid token")
	ErrNoSecret = errors.New("jwtx: signing secret is empty")
)

// Claims are the session-token claims. The subject is the decimal Telegram
// user id; Username is carried for convenience only and must not be trusted
// for authorization decisions.
type Claims struct {
	jwt.RegisteredClaims

	Username string `json:"username,omitempty"`
}

// TelegramUserID parses the subject back into a Telegram user id.
func (c *Claims) TelegramUserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalid
	}
	return id, nil
}

// Signer signs and verifies session tokens with a shared HMAC secret.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewSigner(secret []byte, issuer string, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Signer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Mint issues a session token for the given Telegram user.
func (s *Signer) Mint(telegramUserID int64, username string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(telegramUserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a session token, restricting the accepted
// algorithm to HS256.
func (s *Signer) Verify(raw string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return Claims{}, ErrIssuer
	default:
		return Claims{}, ErrInvalid
	}
}
