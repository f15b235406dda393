package token

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Purposes keep token types in distinct keyed namespaces: a token minted for
// one purpose never decodes under another, even though both share the root
// secret.
const (
	PurposePickLink  = "pick-link"
	PurposeViewPicks = "view-picks"
)

// ErrInvalidToken is returned for any malformed, tampered or wrong-purpose
// token. Callers surface it as "invalid or expired link" and nothing more.
var ErrInvalidToken = errors.New("invalid token")

// Codec signs and verifies opaque participant/round tokens. Tokens carry no
// expiry: the round closing is the real expiry mechanism, checked by the
// caller after decode.
type Codec struct {
	secret  []byte
	purpose string
}

func New(secret, purpose string) *Codec {
	return &Codec{secret: []byte(secret), purpose: purpose}
}

type linkClaims struct {
	ParticipantID uint `json:"p"`
	RoundID       uint `json:"r"`
	jwt.RegisteredClaims
}

// Encode produces a URL-safe signed token for (participantID, roundID).
func (c *Codec) Encode(participantID, roundID uint) (string, error) {
	claims := linkClaims{
		ParticipantID: participantID,
		RoundID:       roundID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{c.purpose},
			Subject:  strconv.FormatUint(uint64(participantID), 10),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and purpose and returns the embedded ids.
// Any failure collapses to ErrInvalidToken. Strict decoding rejects non-zero
// base64 padding bits, so changing any single character of a token fails.
func (c *Codec) Decode(tokenStr string) (participantID, roundID uint, err error) {
	var claims linkClaims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithAudience(c.purpose), jwt.WithStrictDecoding())
	if err != nil || !parsed.Valid {
		return 0, 0, ErrInvalidToken
	}
	if claims.ParticipantID == 0 || claims.RoundID == 0 {
		return 0, 0, ErrInvalidToken
	}
	return claims.ParticipantID, claims.RoundID, nil
}
