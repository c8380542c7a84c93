// Package jsondb stores the collections as pretty-printed JSON documents, one file per collection.
package jsondb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core"
)

type Collection string

const (
	Alunos          Collection = "Aluno"
	Professores     Collection = "Professor"
	Administrativos Collection = "Administrativo"
	Atividades      Collection = "Atividades"

	sequencesFile = "sequences.json"
)

var (
	Collections = []Collection{Alunos, Professores, Administrativos, Atividades}

	fileNames = map[Collection]string{
		Alunos:          "BD_A.json",
		Professores:     "BD_P.json",
		Administrativos: "BD_AD.json",
		Atividades:      "BD_ACT.json",
	}

	ErrUnknownCollection = errors.New("unknown collection")
)

// DB gives access to the collection documents of one data directory.
// Every read-modify-write of a collection holds that collection's lock; other processes are not coordinated.
type DB struct {
	dir   string
	log   core.Logger
	locks map[Collection]*sync.Mutex
	seqMu sync.Mutex
}

// Open creates dir and writes an empty document for every missing collection.
func Open(dir string, logger core.Logger) (*DB, error) {
	db := &DB{
		dir:   dir,
		log:   logger,
		locks: make(map[Collection]*sync.Mutex, len(Collections)),
	}
	for _, c := range Collections {
		db.locks[c] = new(sync.Mutex)
	}
	if err := db.ensureCollections(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) Dir() string { return db.dir }

// Path returns the document path of c.
func (db *DB) Path(c Collection) string {
	return filepath.Join(db.dir, fileNames[c])
}

func (db *DB) ensureCollections() error {
	if err := os.MkdirAll(db.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating data directory")
	}
	for _, c := range Collections {
		if _, err := os.Stat(db.Path(c)); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "stat %s", c)
		}
		if err := db.save(c, []struct{}{}); err != nil {
			return errors.Wrapf(err, "creating %s", c)
		}
	}
	return nil
}

func (db *DB) lock(c Collection) (*sync.Mutex, error) {
	mu, ok := db.locks[c]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCollection, "%q", c)
	}
	return mu, nil
}

// View loads c into dst, a pointer to a slice.
func (db *DB) View(ctx context.Context, c Collection, dst interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu, err := db.lock(c)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return db.load(c, dst)
}

// Update loads c into dst, calls fn and saves dst back when fn reports a change.
// Nothing is written when fn fails; its error is returned as is.
func (db *DB) Update(ctx context.Context, c Collection, dst interface{}, fn func() (changed bool, err error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu, err := db.lock(c)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	if err := db.load(c, dst); err != nil {
		return err
	}
	changed, err := fn()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return db.save(c, reflect.ValueOf(dst).Elem().Interface())
}

// load decodes the document of c. A missing document is empty; an undecodable one is
// moved aside to <file>.corrupt-<unix time> and read as empty.
func (db *DB) load(c Collection, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.Errorf("jsondb: destination must be a pointer to a slice, got %T", dst)
	}
	rv.Elem().Set(reflect.MakeSlice(rv.Elem().Type(), 0, 0))

	path := db.Path(c)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			db.log.Warn("collection document missing, reading as empty", map[string]interface{}{"collection": c, "path": path})
			return nil
		}
		return errors.Wrapf(err, "reading %s", c)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		rv.Elem().Set(reflect.MakeSlice(rv.Elem().Type(), 0, 0))
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if mvErr := os.Rename(path, aside); mvErr != nil {
			db.log.Error("corrupt collection could not be moved aside", errors.Wrap(mvErr, err.Error()), map[string]interface{}{"collection": c})
			return errors.Wrapf(mvErr, "moving corrupt %s aside", c)
		}
		db.log.Error("corrupt collection moved aside, reading as empty", err, map[string]interface{}{
			"collection": c,
			"path":       path,
			"moved_to":   aside,
		})
		return db.save(c, []struct{}{})
	}
	return nil
}

// save writes v to a temporary file next to the document of c, then renames it over the document.
func (db *DB) save(c Collection, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		v = []struct{}{}
	}

	data, err := marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", c)
	}
	return writeFile(db.Path(c), data)
}

// marshal indents with two spaces and keeps non-ASCII text and HTML characters as is.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "syncing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	return errors.Wrap(os.Rename(tmpName, path), "renaming temp file")
}

// NextID returns the next id of c: one more than both maxExisting and the last id handed out,
// so ids removed from the document are never reused.
func (db *DB) NextID(c Collection, maxExisting int) (int, error) {
	db.seqMu.Lock()
	defer db.seqMu.Unlock()

	path := filepath.Join(db.dir, sequencesFile)
	seqs := make(map[Collection]int)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &seqs); err != nil {
			db.log.Error("corrupt sequences file, ids continue from the collection", err, map[string]interface{}{"path": path})
			seqs = make(map[Collection]int)
		}
	} else if !os.IsNotExist(err) {
		return 0, errors.Wrap(err, "reading sequences")
	}

	id := seqs[c]
	if maxExisting > id {
		id = maxExisting
	}
	id++
	seqs[c] = id

	data, err := marshal(seqs)
	if err != nil {
		return 0, errors.Wrap(err, "encoding sequences")
	}
	if err := writeFile(path, data); err != nil {
		return 0, errors.Wrap(err, "saving sequences")
	}
	return id, nil
}
