package store

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string]*buf
}

var (
	// ensure Memory satisfies the Store interface
	_ Store = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string]*buf)}
}

// List returns a channel giving the id for every item in the store. The
// keys are taken from a snapshot made when List is called.
func (ms *Memory) List() <-chan string {
	keys, _ := ms.ListPrefix("")
	c := make(chan string)
	go func() {
		for _, k := range keys {
			c <- k
		}
		close(c)
	}()
	return c
}

// ListPrefix returns all the key entries which begin with the given prefix,
// sorted.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.store {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	sort.Strings(result)
	return result, nil
}

// Open returns a ReadAtCloser and the size of the given blob. Items still
// being written cannot be opened.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ok = ok && v.done
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNotFound
	}
	return v, int64(len(v.b)), nil
}

// A buf is the content of one item. It is only appended to until it is
// closed, and only read afterwards.
type buf struct {
	done bool
	b    []byte
}

func (r *buf) Close() error {
	r.done = true
	return nil
}

func (r *buf) ReadAt(p []byte, off int64) (int, error) {
	if int(off) >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *buf) Write(p []byte) (int, error) {
	if r.done {
		return 0, fmt.Errorf("write to closed item")
	}
	r.b = append(r.b, p...)
	return len(p), nil
}

// Create makes a new entry in the store, and returns a writer to save data
// into it.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.store[key]; ok {
		return nil, ErrKeyExists
	}
	r := &buf{}
	ms.store[key] = r
	return &memoryWriter{buf: r, ms: ms}, nil
}

// memoryWriter marks its item done under the store lock, so readers never
// see a half written item.
type memoryWriter struct {
	*buf
	ms *Memory
}

func (w *memoryWriter) Close() error {
	w.ms.m.Lock()
	defer w.ms.m.Unlock()
	return w.buf.Close()
}

// Delete the given key from the store. It is not an error if the item does
// not exist in the store.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.store, key)
	ms.m.Unlock()
	return nil
}
