package fieldcrypt

import (
	"crypto/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core/secret"
)

type staticKey []byte

func (k staticKey) Key() ([]byte, error) { return k, nil }

func sequentialKey() staticKey {
	k := make(staticKey, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func freshKey(t *testing.T) *secret.Manager {
	m := secret.NewManager(filepath.Join(t.TempDir(), "secret.key"))
	require.NoError(t, m.EnsureKey())
	return m
}

var samples = []string{
	"",
	"admin",
	"Administrador",
	"João da Silva",
	"Período: Manhã",
	"3B",
	"123.456.789-00",
	"emoji 🎓📚",
	strings.Repeat("long value ", 20),
}

func TestCipher_roundTrip(t *testing.T) {
	c := New(freshKey(t))

	for _, s := range samples {
		t.Run(s, func(t *testing.T) {
			tok, err := c.Encrypt(s)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(tok, LegacyPrefix))
			got, err := c.Decrypt(tok)
			require.NoError(t, err)
			assert.Equal(t, s, got)

			tok, err = c.MigrateEncrypt(s)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(tok, StrongPrefix))
			assert.Equal(t, Strong, SchemeOf(tok))
			got, err = c.Decrypt(tok)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestCipher_Encrypt_knownVector(t *testing.T) {
	c := New(sequentialKey())

	// 'a'^0, 'b'^1, 'c'^2 == "aca"
	tok, err := c.Encrypt("abc")
	require.NoError(t, err)
	assert.Equal(t, "ENC:YWNh", tok)

	got, err := c.Decrypt("ENC:YWNh")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestCipher_Decrypt_unprefixed(t *testing.T) {
	c := New(sequentialKey())

	tests := []string{"", "plain text", "enc:lowercase", "ENC", "FERN", "Aluno", "xENC:abc"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			got, err := c.Decrypt(s)
			assert.NoError(t, err)
			assert.Equal(t, s, got)
			assert.Equal(t, Plain, SchemeOf(s))
		})
	}
}

func TestCipher_Decrypt_failures(t *testing.T) {
	c := New(sequentialKey())
	strongTok, err := c.MigrateEncrypt("secret")
	require.NoError(t, err)

	otherKey := make(staticKey, 32)
	_, _ = rand.Read(otherKey)

	tests := []struct {
		name   string
		cipher *Cipher
		token  string
	}{
		{name: "legacy: bad base64", cipher: c, token: "ENC:###"},
		{name: "legacy: invalid utf-8", cipher: c, token: "ENC:/w=="},
		{name: "strong: garbage", cipher: c, token: "FERN:garbage"},
		{name: "strong: tampered", cipher: c, token: strongTok[:len(strongTok)-4] + "AAAA"},
		{name: "strong: other key", cipher: New(otherKey), token: strongTok},
		{name: "strong: scheme disabled", cipher: New(sequentialKey(), WithStrongScheme(false)), token: strongTok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cipher.Decrypt(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecrypt))
			// the raw token is handed back so callers can tell it apart from a plaintext
			assert.Equal(t, tt.token, got)
		})
	}
}

func TestCipher_migration(t *testing.T) {
	keys := freshKey(t)
	legacyOnly := New(keys, WithStrongScheme(false))
	both := New(keys, WithStrongScheme(true))

	// values written before the strong scheme was available
	legacyTok, err := legacyOnly.Encrypt("Maria")
	require.NoError(t, err)
	degraded, err := legacyOnly.MigrateEncrypt("Maria")
	require.NoError(t, err)
	assert.Equal(t, Legacy, SchemeOf(degraded))

	for _, tok := range []string{legacyTok, degraded} {
		got, err := both.Decrypt(tok)
		require.NoError(t, err)
		assert.Equal(t, "Maria", got)
	}

	// legacy -> strong, in place
	migrated, err := both.Migrate(legacyTok)
	require.NoError(t, err)
	assert.Equal(t, Strong, SchemeOf(migrated))
	got, err := both.Decrypt(migrated)
	require.NoError(t, err)
	assert.Equal(t, "Maria", got)

	// strong tokens are never read as legacy ones
	assert.False(t, strings.HasPrefix(migrated, LegacyPrefix))
	again, err := both.Migrate(migrated)
	require.NoError(t, err)
	assert.Equal(t, migrated, again)

	// plaintext is migrated too
	migrated, err = both.Migrate("plain")
	require.NoError(t, err)
	got, err = both.Decrypt(migrated)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestCipher_nulls(t *testing.T) {
	c := New(sequentialKey())

	enc, err := c.EncryptNull(null.String{})
	require.NoError(t, err)
	assert.False(t, enc.Valid)

	dec, err := c.DecryptNull(null.String{})
	require.NoError(t, err)
	assert.False(t, dec.Valid)

	enc, err = c.EncryptNull(null.StringFrom("3B"))
	require.NoError(t, err)
	require.True(t, enc.Valid)
	dec, err = c.DecryptNull(enc)
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("3B"), dec)
}

type countingDecrypter struct {
	calls int
	c     *Cipher
}

func (d *countingDecrypter) Decrypt(tok string) (string, error) {
	d.calls++
	return d.c.Decrypt(tok)
}

func TestMemo(t *testing.T) {
	c := New(sequentialKey())
	tok, err := c.Encrypt("3B")
	require.NoError(t, err)

	d := &countingDecrypter{c: c}
	memo := NewMemo(d)
	for i := 0; i < 3; i++ {
		got, err := memo.Decrypt(tok)
		require.NoError(t, err)
		assert.Equal(t, "3B", got)
	}
	got, err := memo.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 1, memo.Len())

	// a reloaded batch starts from scratch
	assert.Equal(t, 0, NewMemo(d).Len())
}
