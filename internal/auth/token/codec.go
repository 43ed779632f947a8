package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/config"
	commoncrypto "github.com/AlibekovAA/fincore/internal/common/crypto"
)

type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenMalformed  = errors.New("token malformed")
	ErrTokenSignature  = errors.New("token signature invalid")
	ErrTokenClaims     = errors.New("token claims invalid")
	ErrInvalidTokenTTL = errors.New("token ttl must be positive")
)

// Claims is the payload shared by access and refresh tokens.
type Claims struct {
	TokenVersion int64 `json:"tokenVersion"`
	jwt.RegisteredClaims
}

func (c Claims) AccountID() string {
	return c.Subject
}

type Signed struct {
	Token string
	// ExpiresAt is the deadline recorded by the caller: token exp for access, stored soft deadline for refresh.
	ExpiresAt time.Time
	// MaxAge is how long the carrier should keep the token.
	MaxAge time.Duration
}

type keyMaterial struct {
	secret []byte
	ttl    time.Duration
	// extra lifetime added to the signed exp beyond ttl.
	grace time.Duration
}

type Codec struct {
	keys        map[Kind]keyMaterial
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
}

func NewCodec(cfg config.TokenConfig, idGenerator commoncrypto.IDGenerator, clk clock.Clock) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.RefreshGrace < 0 {
		return nil, ErrInvalidTokenTTL
	}

	return &Codec{
		keys: map[Kind]keyMaterial{
			Access:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			Refresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL, grace: cfg.RefreshGrace},
		},
		idGenerator: idGenerator,
		clock:       clk,
	}, nil
}

func (c *Codec) Sign(kind Kind, subject string, version int64) (Signed, error) {
	key := c.keys[kind]

	jti, err := c.idGenerator.NewID()
	if err != nil {
		return Signed{}, fmt.Errorf("generate jti: %w", err)
	}

	now := c.clock.Now()
	deadline := now.Add(key.ttl)
	hardExpiry := deadline.Add(key.grace)

	claims := Claims{
		TokenVersion: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(hardExpiry),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.secret)
	if err != nil {
		return Signed{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return Signed{Token: raw, ExpiresAt: deadline, MaxAge: hardExpiry.Sub(now)}, nil
}

// Parse checks signature, algorithm and exp. It does not consult the account's current version.
func (c *Codec) Parse(kind Kind, raw string) (Claims, error) {
	key := c.keys[kind]

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return key.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		return Claims{}, classifyParseError(err)
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub", ErrTokenClaims)
	}
	if claims.TokenVersion < 0 {
		return Claims{}, fmt.Errorf("%w: negative version", ErrTokenClaims)
	}

	return claims, nil
}

func (c *Codec) MaxAge(kind Kind) time.Duration {
	key := c.keys[kind]
	return key.ttl + key.grace
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenClaims, err)
	}
}
