// Package token signs and verifies the two JWT classes used for sessions:
// short-lived access tokens and long-lived refresh tokens. Each class has its
// own secret and lifetime, and a token of one class never verifies as the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
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
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")

	errMissingSubject = errors.New("payload missing id or role")
	errWrongKind      = errors.New("token class mismatch")
)

// Subject is the identity carried by both token classes.
type Subject struct {
	ID   uint
	Role string
}

// Claims is the signed payload. Typ records the token class.
type Claims struct {
	UserID uint   `json:"id"`
	Role   string `json:"role"`
	Typ    string `json:"typ"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser alongside the registered-claim checks.
func (c *Claims) Validate() error {
	if c.UserID == 0 || c.Role == "" {
		return errMissingSubject
	}
	return nil
}

func (c *Claims) Identity() Subject {
	return Subject{ID: c.UserID, Role: c.Role}
}

type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type Codec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec refuses to build a codec without both secrets and positive lifetimes.
func NewCodec(opts Options) (*Codec, error) {
	if opts.AccessSecret == "" || opts.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, errors.New("token: lifetimes must be positive")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		accessKey:  []byte(opts.AccessSecret),
		refreshKey: []byte(opts.RefreshSecret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        now,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Codec) SignAccess(s Subject) (string, error) {
	return c.sign(s, Access)
}

func (c *Codec) SignRefresh(s Subject) (string, error) {
	return c.sign(s, Refresh)
}

func (c *Codec) sign(s Subject, kind Kind) (string, error) {
	if s.ID == 0 || s.Role == "" {
		return "", fmt.Errorf("sign %s token: %w", kind, errMissingSubject)
	}

	now := c.now()
	claims := &Claims{
		UserID: s.ID,
		Role:   s.Role,
		Typ:    kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl(kind))),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key(kind))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, class, expiry and payload shape. Failures are
// reported as ErrExpired or ErrMalformed.
func (c *Codec) Verify(tokenString string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.KeyFunc(kind),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, Classify(err)
	}
	return claims, nil
}

// KeyFunc returns the jwt.Keyfunc for one token class. It rejects anything
// but HS256, tokens without exp and tokens whose typ claim names the
// other class.
func (c *Codec) KeyFunc(kind Kind) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		if claims, ok := t.Claims.(*Claims); ok {
			if claims.Typ != kind.String() {
				return nil, errWrongKind
			}
			if claims.ExpiresAt == nil {
				return nil, jwt.ErrTokenRequiredClaimMissing
			}
		}
		return c.key(kind), nil
	}
}

// Classify maps a jwt parse error onto ErrExpired or ErrMalformed.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrExpired) || errors.Is(err, ErrMalformed) {
		return err
	}
	// A bad payload outranks expiry: refreshing would not fix it.
	if errors.Is(err, errMissingSubject) || errors.Is(err, errWrongKind) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func (c *Codec) key(kind Kind) []byte {
	if kind == Refresh {
		return c.refreshKey
	}
	return c.accessKey
}

func (c *Codec) ttl(kind Kind) time.Duration {
	if kind == Refresh {
		return c.refreshTTL
	}
	return c.accessTTL
}
