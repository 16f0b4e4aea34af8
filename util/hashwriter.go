package util

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Checksum algorithm names. They follow the PREMIS messageDigestAlgorithm
// vocabulary so they can be written into the manifest unchanged.
const (
	MD5    = "MD5"
	SHA1   = "SHA-1"
	SHA224 = "SHA-224"
	SHA256 = "SHA-256"
	SHA384 = "SHA-384"
	SHA512 = "SHA-512"
)

// NewHash returns a fresh hash.Hash for the named algorithm.
func NewHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA224:
		return sha256.New224(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("Invalid checksum algorithm '%s'", algorithm)
}

// VerifyStreamHash checksums the given io.Reader with the named algorithm
// and compares the result against goal. An empty goal always matches.
// The reader is not closed when finished.
func VerifyStreamHash(r io.Reader, algorithm string, goal []byte) (bool, error) {
	if len(goal) == 0 {
		return true, nil
	}
	hw, err := NewHashWriterPlain(algorithm)
	if err != nil {
		return false, err
	}
	_, err = io.Copy(hw, r)
	_, ok := hw.Check(algorithm, goal)
	return ok, err
}

// An HashWriter wraps an io.Writer and also calculates hashes of the bytes
// written, one for each algorithm it was created with.
type HashWriter struct {
	io.Writer // our io.MultiWriter
	hashes    map[string]hash.Hash
}

// NewHashWriter returns a HashWriter wrapping w. If no algorithms are given
// the writer computes MD5 and SHA-256 hashes.
func NewHashWriter(w io.Writer, algorithms ...string) (*HashWriter, error) {
	if len(algorithms) == 0 {
		algorithms = []string{MD5, SHA256}
	}
	hw := &HashWriter{hashes: make(map[string]hash.Hash)}
	var writers []io.Writer
	if w != nil {
		writers = append(writers, w)
	}
	for _, name := range algorithms {
		if _, ok := hw.hashes[name]; ok {
			continue
		}
		h, err := NewHash(name)
		if err != nil {
			return nil, err
		}
		hw.hashes[name] = h
		writers = append(writers, h)
	}
	hw.Writer = io.MultiWriter(writers...)
	return hw, nil
}

// NewMD5Writer returns a HashWriter wrapping w and only computing an MD5 hash.
func NewMD5Writer(w io.Writer) *HashWriter {
	hw, _ := NewHashWriter(w, MD5)
	return hw
}

// NewHashWriterPlain return a HashWriter that does not wrap an output stream.
// It will just compute the checksums of the data written to it.
func NewHashWriterPlain(algorithms ...string) (*HashWriter, error) {
	return NewHashWriter(nil, algorithms...)
}

// Sum returns the hash computed so far for the named algorithm, or nil if
// this writer does not compute it.
func (hw *HashWriter) Sum(algorithm string) []byte {
	h, ok := hw.hashes[algorithm]
	if !ok {
		return nil
	}
	return h.Sum(nil)
}

// Hex is Sum encoded as a lower case hex string.
func (hw *HashWriter) Hex(algorithm string) string {
	return hex.EncodeToString(hw.Sum(algorithm))
}

// Check returns the hash for the named algorithm, and compares it for
// equality with the goal hash passed in. If the goal is empty then it is
// treated as matching, and true is returned.
func (hw *HashWriter) Check(algorithm string, goal []byte) ([]byte, bool) {
	computed := hw.Sum(algorithm)
	ok := len(goal) == 0 || bytes.Equal(goal, computed)
	return computed, ok
}
