package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
)

// FileSystem implements a store keeping every item as a file directly in
// one directory. The keys are used as file names, so a package stored as
// "sip.tar" ends up at <root>/sip.tar. Items are written to a hidden
// temporary file and renamed into place when closed, so a partially written
// item is never visible under its key.
type FileSystem struct {
	root string
}

// prefix of the temporary files used while an item is being written
const tempPrefix = ".incoming-"

var (
	// make sure it implements the Store interface
	_ Store = &FileSystem{}

	// ErrKeyContainsSlash means the key provided contains a forward slash '/'
	ErrKeyContainsSlash = errors.New("Key contains forward slash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsControlChar means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control Characters")

	// ErrKeyInvalid means the key is empty or is a reserved name
	ErrKeyInvalid = errors.New("Key is empty or reserved")
)

// NewFileSystem creates a new FileSystem store based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root}
}

// List returns a channel listing all the keys in this store.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go func() {
		defer close(c)
		keys, err := s.ListPrefix("")
		if err != nil {
			// we have no other way of passing this error back
			raven.CaptureError(err, map[string]string{"Root": s.root})
			return
		}
		for _, k := range keys {
			c <- k
		}
	}()
	return c
}

// ListPrefix returns a sorted list of all the keys beginning with the given
// prefix.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Open returns a reader for the given object along with its size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := isKeyValid(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create creates a new item with the given key, and a writer to allow for
// saving data into the new item.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := isKeyValid(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.root, 0775); err != nil {
		return nil, err
	}
	target := filepath.Join(s.root, key)
	_, err := os.Lstat(target)
	if !os.IsNotExist(err) {
		return nil, ErrKeyExists
	}
	w, err := os.CreateTemp(s.root, tempPrefix+key+"-*")
	if err != nil {
		return nil, err
	}
	return &moveCloser{w, w.Name(), target}, nil
}

// track the file so when it is closed, we can move it into the correct place
type moveCloser struct {
	io.WriteCloser
	source string
	target string
}

func (w *moveCloser) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		os.Remove(w.source)
		return err
	}
	_, err = os.Lstat(w.target)
	if !os.IsNotExist(err) {
		os.Remove(w.source)
		return ErrKeyExists
	}
	return os.Rename(w.source, w.target)
}

// Delete the given key from the store. It is not an error if the key doesn't
// exist.
func (s *FileSystem) Delete(key string) error {
	if err := isKeyValid(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, key))
	// don't report a missing file as an error
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// Some Simple Item Key Validations
func isKeyValid(key string) error {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, tempPrefix) {
		return ErrKeyInvalid
	}
	if !utf8.ValidString(key) {
		return ErrKeyContainsNonUnicode
	}
	if strings.ContainsAny(key, `/\`) {
		return ErrKeyContainsSlash
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return ErrKeyContainsControlChar
		}
	}
	return nil
}
