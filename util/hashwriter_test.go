package util

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

const hashInput = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"

func TestHashWriter(t *testing.T) {
	goalMD5, _ := hex.DecodeString("0101fc798d94a730b0f0bf1bd2cc1959")
	goalSHA256, _ := hex.DecodeString("fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658")
	var w = new(bytes.Buffer)
	hw, err := NewHashWriter(w)
	if err != nil {
		t.Fatal(err)
	}
	dohashtest(t, hw, hashInput, map[string][]byte{MD5: goalMD5, SHA256: goalSHA256})
	if w.String() != hashInput {
		t.Errorf("Got %q written through, expected %q", w.String(), hashInput)
	}
	w.Reset()
	hw2 := NewMD5Writer(w)
	dohashtest(t, hw2, hashInput, map[string][]byte{MD5: goalMD5})
	if sum := hw2.Sum(SHA256); sum != nil {
		t.Errorf("Got SHA-256 %x from an MD5 only writer", sum)
	}
}

func TestHashWriterAlgorithms(t *testing.T) {
	var table = []struct {
		algorithm string
		input     string
		goal      string
	}{
		{SHA1, "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{SHA1, "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{MD5, "abc", "900150983cd24fb0d6963f7d28e17f72"},
		{SHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{SHA224, "abc", "23097d223405d8228642a477bda255b32aadbce4bda0b3f7e36c9da7"},
	}
	for _, tab := range table {
		hw, err := NewHashWriterPlain(tab.algorithm)
		if err != nil {
			t.Fatalf("%s: %s", tab.algorithm, err)
		}
		hw.Write([]byte(tab.input))
		if got := hw.Hex(tab.algorithm); got != tab.goal {
			t.Errorf("%s(%q): got %s, expected %s", tab.algorithm, tab.input, got, tab.goal)
		}
	}
}

func TestHashWriterUnknown(t *testing.T) {
	_, err := NewHashWriterPlain("CRC32")
	if err == nil || err.Error() != "Invalid checksum algorithm 'CRC32'" {
		t.Errorf("Got %v, expected invalid algorithm error", err)
	}
}

func TestVerifyStreamHash(t *testing.T) {
	goal, _ := hex.DecodeString("0101fc798d94a730b0f0bf1bd2cc1959")
	ok, err := VerifyStreamHash(strings.NewReader(hashInput), MD5, goal)
	if err != nil || !ok {
		t.Errorf("Got %v, %v, expected true, nil", ok, err)
	}
	ok, _ = VerifyStreamHash(strings.NewReader(hashInput+"x"), MD5, goal)
	if ok {
		t.Errorf("Modified stream verified")
	}
	ok, _ = VerifyStreamHash(strings.NewReader(hashInput), MD5, nil)
	if !ok {
		t.Errorf("Empty goal did not match")
	}
}

func dohashtest(t *testing.T, hw *HashWriter, input string, goals map[string][]byte) {
	hw.Write([]byte(input))
	for name, goal := range goals {
		h, ok := hw.Check(name, goal)
		if !ok {
			t.Fatalf("%s: Got %x, expected %x\n", name, h, goal)
		}
	}
}
