// Package secret manages the symmetric key every encrypted field depends on.
package secret

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core"
)

// KeySize is the number of raw bytes in a key.
const KeySize = 32

var (
	ErrCorruptKey = errors.New("key file is corrupt")

	randReader = rand.Reader // mockable
)

// Manager creates the key file once and serves it, read-only, afterwards.
type Manager struct {
	path string

	mu  sync.Mutex
	key []byte
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

// EnsureKey generates and persists a key if the key file does not exist yet.
func (m *Manager) EnsureKey() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureKey()
}

func (m *Manager) ensureKey() error {
	if _, err := os.Stat(m.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "checking key file")
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return errors.Wrap(err, "creating key dir")
	}
	raw := make([]byte, KeySize)
	if _, err := randReader.Read(raw); err != nil {
		return errors.Wrap(err, "generating key")
	}

	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) { // created concurrently
			return nil
		}
		return errors.Wrap(err, "creating key file")
	}
	if _, err = f.Write([]byte(base64.StdEncoding.EncodeToString(raw))); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing key file")
	}
	return errors.Wrap(f.Close(), "closing key file")
}

// Key returns the key, creating the key file first if needed.
// A key file that does not decode to exactly KeySize bytes is a fatal error.
func (m *Manager) Key() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		return m.key, nil
	}
	if err := m.ensureKey(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading key file")
	}
	key, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, core.NewFatalError(errors.Wrap(ErrCorruptKey, err.Error()))
	}
	if len(key) != KeySize {
		return nil, core.NewFatalError(errors.Wrapf(ErrCorruptKey, "decoded %d bytes, want %d", len(key), KeySize))
	}
	m.key = key
	return key, nil
}
