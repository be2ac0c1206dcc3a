// Package hashedlink issues and verifies signed single-use booking links.
package hashedlink

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenName     = "slotbook-link"
	minSecretSize = 16
)

var ErrShortSecret = errors.New("links secret must be at least 16 bytes")

type claims struct {
	Hash        string `json:"h"`
	EventTypeID int64  `json:"e"`
}

// Codec signs and encrypts link claims. Expiry is tracked with the stored
// link, so tokens themselves never age out.
type Codec struct {
	sc *securecookie.SecureCookie
}

func NewCodec(secret string) (*Codec, error) {
	const op = "hashedlink.NewCodec"

	if len(secret) < minSecretSize {
		return nil, fmt.Errorf("%s:%w", op, ErrShortSecret)
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(tokenName))
	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	sc := securecookie.New(hashKey, blockKey).
		MaxAge(0).
		SetSerializer(securecookie.JSONEncoder{})

	return &Codec{sc: sc}, nil
}

// Issue returns a token for a new link of the event type and the hash under
// which the link must be stored.
func (c *Codec) Issue(eventTypeID int64) (token, hash string, err error) {
	const op = "hashedlink.Codec.Issue"

	raw := securecookie.GenerateRandomKey(16)
	if raw == nil {
		return "", "", fmt.Errorf("%s: random source failed", op)
	}
	hash = hex.EncodeToString(raw)

	token, err = c.sc.Encode(tokenName, claims{Hash: hash, EventTypeID: eventTypeID})
	if err != nil {
		return "", "", fmt.Errorf("%s:%w", op, err)
	}

	return token, hash, nil
}

// Verify decodes a token into the link hash and event type it was issued for.
func (c *Codec) Verify(token string) (string, int64, error) {
	const op = "hashedlink.Codec.Verify"

	var cl claims
	if err := c.sc.Decode(tokenName, token, &cl); err != nil {
		return "", 0, fmt.Errorf("%s:%w", op, err)
	}

	return cl.Hash, cl.EventTypeID, nil
}
