package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a signed token asserts about its bearer.
type Identity struct {
	Subject  string
	Roles    []string
	Name     string
	DoctorID string
}

// Issuer signs HS256 tokens for authenticated accounts.
type Issuer struct {
	issuer string
	key    []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(issuer string, key []byte, ttl time.Duration) *Issuer {
	return &Issuer{issuer: issuer, key: key, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for id and its expiry time.
func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	if len(i.key) == 0 {
		return "", time.Time{}, errors.New("signing key not configured")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles:    id.Roles,
		Name:     id.Name,
		DoctorID: id.DoctorID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
