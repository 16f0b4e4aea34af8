package store

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkStore runs the common behavior every Store should have.
func checkStore(t *testing.T, s Store) {
	keys, err := s.ListPrefix("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, _, err = s.Open("missing")
	assert.Equal(t, ErrNotFound, err)

	w, err := s.Create("hello")
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello world")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = s.Create("hello")
	assert.Equal(t, ErrKeyExists, err)

	r, size, err := s.Open("hello")
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)
	data, err := io.ReadAll(NewReader(r))
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	p := make([]byte, 5)
	n, err := r.ReadAt(p, 6)
	assert.Equal(t, 5, n)
	assert.True(t, err == nil || err == io.EOF)
	assert.Equal(t, "world", string(p))
	require.NoError(t, r.Close())

	w, err = s.Create("help")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	keys, err = s.ListPrefix("hel")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "help"}, keys)

	var listed []string
	for k := range s.List() {
		listed = append(listed, k)
	}
	assert.ElementsMatch(t, []string{"hello", "help"}, listed)

	require.NoError(t, s.Delete("hello"))
	require.NoError(t, s.Delete("hello"))
	_, _, err = s.Open("hello")
	assert.Equal(t, ErrNotFound, err)

	// a deleted key can be created again
	w, err = s.Create("hello")
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestStores(t *testing.T) {
	var table = []struct {
		name string
		s    Store
	}{
		{"memory", NewMemory()},
		{"filesystem", NewFileSystem(t.TempDir())},
	}
	for _, tab := range table {
		t.Run(tab.name, func(t *testing.T) {
			checkStore(t, tab.s)
		})
	}
}

func TestMemoryOpenWhileWriting(t *testing.T) {
	s := NewMemory()
	w, err := s.Create("sip.tar")
	require.NoError(t, err)
	_, _, err = s.Open("sip.tar")
	assert.Equal(t, ErrNotFound, err)
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
}
