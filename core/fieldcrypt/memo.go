package fieldcrypt

type Decrypter interface {
	Decrypt(token string) (string, error)
}

type memoEntry struct {
	val string
	err error
}

// Memo caches decrypted values for the lifetime of one loaded batch of records.
// Build a new Memo whenever the records are reloaded from storage.
type Memo struct {
	dec  Decrypter
	vals map[string]memoEntry
}

func NewMemo(dec Decrypter) *Memo {
	return &Memo{dec: dec, vals: make(map[string]memoEntry)}
}

func (m *Memo) Decrypt(token string) (string, error) {
	if SchemeOf(token) == Plain {
		return token, nil
	}
	if e, ok := m.vals[token]; ok {
		return e.val, e.err
	}
	val, err := m.dec.Decrypt(token)
	m.vals[token] = memoEntry{val: val, err: err}
	return val, err
}

// Len is the number of cached tokens.
func (m *Memo) Len() int { return len(m.vals) }
