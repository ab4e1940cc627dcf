package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

// LockTimeout bounds the wait for the data file lock. Past it the
// operation proceeds unlocked rather than hanging the CLI.
const LockTimeout = 200 * time.Millisecond

// dataFile is the on-disk form of a store, shared between processes.
type dataFile struct {
	path string
}

// Open returns a store backed by the JSON file at path, creating it with
// the fixture data if it does not exist. Reads see writes made by other
// processes; writes hold an exclusive file lock for the whole
// read-modify-write.
func Open(path string, opts ...Option) (*Store, error) {
	s := NewStore(opts...)
	s.file = &dataFile{path: path}
	doc, err := s.file.ensure()
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	s.data = doc
	return s, nil
}

// Path returns the data file path, or "" for an in-memory store.
func (s *Store) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.path
}

// Save writes the in-memory state to the data file. It is a no-op for an
// in-memory store.
func (s *Store) Save() error {
	if s.file == nil {
		return nil
	}
	s.mu.Lock()
	doc := s.data
	s.mu.Unlock()
	return s.file.update(func(d *document) error {
		*d = doc
		return nil
	})
}

// reload replaces the in-memory state with the file's.
func (s *Store) reload() error {
	if s.file == nil {
		return nil
	}
	doc, err := s.file.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = doc
	s.mu.Unlock()
	return nil
}

func (f *dataFile) lockPath() string { return f.path + ".lock" }

// lock takes the exclusive file lock. A nil *flock.Flock with a nil error
// means the lock timed out and the caller proceeds unlocked.
func (f *dataFile) lock() (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return nil, err
	}
	fl := flock.New(f.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

func unlock(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}

func (f *dataFile) read() (document, error) {
	fl, err := f.lock()
	if err != nil {
		return document{}, err
	}
	defer unlock(fl)
	doc, _, err := f.load()
	return doc, err
}

// ensure loads the document, writing the fixture data if the file is new.
func (f *dataFile) ensure() (document, error) {
	fl, err := f.lock()
	if err != nil {
		return document{}, err
	}
	defer unlock(fl)

	doc, existed, err := f.load()
	if err != nil || existed {
		return doc, err
	}
	return doc, f.save(doc)
}

// update runs fn over the file's document and writes the result back.
// A missing file starts from the fixture data.
func (f *dataFile) update(fn func(*document) error) error {
	fl, err := f.lock()
	if err != nil {
		return err
	}
	defer unlock(fl)

	doc, _, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return f.save(doc)
}

// load reads the document. The bool reports whether the file existed.
func (f *dataFile) load() (document, bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return seedDocument(), false, nil
	}
	if err != nil {
		return document{}, false, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, true, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return doc, true, nil
}

// save writes atomically through a uniquely named temp file.
func (f *dataFile) save(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%d.%d.tmp", f.path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(f.path)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
