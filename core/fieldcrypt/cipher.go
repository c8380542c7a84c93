// Package fieldcrypt encrypts individual string fields of stored records.
//
// A field at rest is either plaintext or a token tagged with its scheme:
//
//	ENC:<base64(xor(utf8(plaintext), key))>   legacy, repeating-key XOR
//	FERN:<fernet token>                       Fernet (AES-128-CBC + HMAC-SHA256)
//
// Anything without a known prefix is plaintext and is returned verbatim.
package fieldcrypt

import (
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const (
	LegacyPrefix = "ENC:"
	StrongPrefix = "FERN:"

	// fernet tokens never expire here
	noExpiry time.Duration = -1
)

var ErrDecrypt = errors.New("cannot decrypt field")

type Scheme int

const (
	Plain Scheme = iota
	Legacy
	Strong
)

func (s Scheme) String() string {
	switch s {
	case Legacy:
		return "legacy"
	case Strong:
		return "strong"
	default:
		return "plain"
	}
}

// SchemeOf tells which scheme produced token.
func SchemeOf(token string) Scheme {
	switch {
	case strings.HasPrefix(token, LegacyPrefix):
		return Legacy
	case strings.HasPrefix(token, StrongPrefix):
		return Strong
	default:
		return Plain
	}
}

// KeySource provides the raw key. Implemented by *secret.Manager.
type KeySource interface {
	Key() ([]byte, error)
}

type Option func(*Cipher)

// WithStrongScheme enables or disables the FERN: scheme.
// When disabled, MigrateEncrypt degrades to the legacy scheme and FERN: tokens cannot be decrypted.
func WithStrongScheme(enabled bool) Option {
	return func(c *Cipher) { c.strong = enabled }
}

type Cipher struct {
	keys   KeySource
	strong bool
}

func New(keys KeySource, opts ...Option) *Cipher {
	c := &Cipher{keys: keys, strong: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt produces a legacy ENC: token.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	key, err := c.keys.Key()
	if err != nil {
		return "", errors.Wrap(err, "loading key")
	}
	return LegacyPrefix + base64.StdEncoding.EncodeToString(xor([]byte(plaintext), key)), nil
}

// MigrateEncrypt produces a FERN: token, falling back to Encrypt whenever the strong path fails.
func (c *Cipher) MigrateEncrypt(plaintext string) (string, error) {
	if c.strong {
		if tok, err := c.encryptStrong(plaintext); err == nil {
			return tok, nil
		}
	}
	return c.Encrypt(plaintext)
}

func (c *Cipher) encryptStrong(plaintext string) (string, error) {
	fk, err := c.fernetKey()
	if err != nil {
		return "", err
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), fk)
	if err != nil {
		return "", errors.Wrap(err, "fernet encrypt")
	}
	return StrongPrefix + string(tok), nil
}

// Decrypt reverses Encrypt and MigrateEncrypt. Un-prefixed values are returned as they are.
// On failure the token itself is returned along with an error whose cause is ErrDecrypt.
func (c *Cipher) Decrypt(token string) (string, error) {
	switch SchemeOf(token) {
	case Legacy:
		pt, err := c.decryptLegacy(token[len(LegacyPrefix):])
		if err != nil {
			return token, err
		}
		return pt, nil
	case Strong:
		if !c.strong {
			return token, errors.Wrap(ErrDecrypt, "strong scheme disabled")
		}
		pt, err := c.decryptStrong(token[len(StrongPrefix):])
		if err != nil {
			return token, err
		}
		return pt, nil
	default:
		return token, nil
	}
}

func (c *Cipher) decryptLegacy(payload string) (string, error) {
	key, err := c.keys.Key()
	if err != nil {
		return "", errors.Wrap(err, "loading key")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.Wrap(ErrDecrypt, "invalid base64")
	}
	pt := xor(data, key)
	if !utf8.Valid(pt) {
		return "", errors.Wrap(ErrDecrypt, "invalid utf-8")
	}
	return string(pt), nil
}

func (c *Cipher) decryptStrong(payload string) (string, error) {
	fk, err := c.fernetKey()
	if err != nil {
		return "", err
	}
	pt := fernet.VerifyAndDecrypt([]byte(payload), noExpiry, []*fernet.Key{fk})
	if pt == nil {
		return "", errors.Wrap(ErrDecrypt, "invalid fernet token")
	}
	if !utf8.Valid(pt) {
		return "", errors.Wrap(ErrDecrypt, "invalid utf-8")
	}
	return string(pt), nil
}

// fernetKey re-encodes the first 32 bytes of the key the way Fernet expects them.
func (c *Cipher) fernetKey() (*fernet.Key, error) {
	key, err := c.keys.Key()
	if err != nil {
		return nil, errors.Wrap(err, "loading key")
	}
	if len(key) < 32 {
		return nil, errors.New("key too short for fernet")
	}
	fk, err := fernet.DecodeKey(base64.URLEncoding.EncodeToString(key[:32]))
	if err != nil {
		return nil, errors.Wrap(err, "decoding fernet key")
	}
	return fk, nil
}

// Migrate rewraps a plain or legacy token with MigrateEncrypt. Strong tokens are returned untouched.
func (c *Cipher) Migrate(token string) (string, error) {
	if SchemeOf(token) == Strong {
		return token, nil
	}
	pt, err := c.Decrypt(token)
	if err != nil {
		return token, err
	}
	return c.MigrateEncrypt(pt)
}

// EncryptNull is Encrypt for nullable values; null passes through.
func (c *Cipher) EncryptNull(v null.String) (null.String, error) {
	if !v.Valid {
		return v, nil
	}
	tok, err := c.Encrypt(v.String)
	if err != nil {
		return null.String{}, err
	}
	return null.StringFrom(tok), nil
}

// DecryptNull is Decrypt for nullable values; null passes through.
func (c *Cipher) DecryptNull(v null.String) (null.String, error) {
	if !v.Valid {
		return v, nil
	}
	pt, err := c.Decrypt(v.String)
	return null.StringFrom(pt), err
}

// xor applies the repeating key to data.
func xor(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}
