package secret

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitdevs/estudos/core"
)

func TestManager_EnsureKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BD", "secret.key")
	m := NewManager(path)

	require.NoError(t, m.EnsureKey())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(string(first))
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)

	// idempotent
	require.NoError(t, NewManager(path).EnsureKey())
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestManager_Key(t *testing.T) {
	dir := t.TempDir()
	write := func(t *testing.T, name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}
	valid := base64.StdEncoding.EncodeToString(make([]byte, KeySize))

	tests := []struct {
		name      string
		path      string
		wantFatal bool
	}{
		{name: "missing file is created", path: filepath.Join(dir, "new.key")},
		{name: "valid file", path: write(t, "valid.key", valid)},
		{name: "trailing newline", path: write(t, "newline.key", valid+"\n")},
		{name: "not base64", path: write(t, "garbage.key", "%%% not base64 %%%"), wantFatal: true},
		{name: "wrong length", path: write(t, "short.key", base64.StdEncoding.EncodeToString([]byte("short"))), wantFatal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewManager(tt.path).Key()
			if tt.wantFatal {
				require.Error(t, err)
				assert.True(t, core.IsFatal(err))
				assert.True(t, errors.Is(err, ErrCorruptKey))
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, KeySize)
		})
	}
}

func TestManager_Key_cached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.key")
	m := NewManager(path)
	key, err := m.Key()
	require.NoError(t, err)

	// the key is read-only after the first load
	require.NoError(t, os.Remove(path))
	again, err := m.Key()
	require.NoError(t, err)
	assert.Equal(t, key, again)
}
