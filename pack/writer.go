// Package pack writes finished packages as tar streams and handles their
// signatures.
//
// A package holds the manifest as mets.xml, the signature as signature.sig,
// and then every digital object at its path inside the package. The
// signature lists a digest of the manifest and is signed with an RSA key.
package pack

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ndlib/siptools/util"
)

// Names of the bookkeeping entries of a package.
const (
	ManifestName  = "mets.xml"
	SignatureName = "signature.sig"
)

// An Entry records one file written to a package.
type Entry struct {
	Name   string
	Size   int64
	MD5    []byte
	SHA256 []byte
}

// Writer serializes a package into a tar stream. The checksums of every
// entry are tracked as it is written.
type Writer struct {
	tw      *tar.Writer // the underlying tar writer
	entries []Entry
	sz      int64 // total bytes of file content written
}

// NewWriter creates a package writer which will serialize itself to the
// provided io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{tw: tar.NewWriter(w)}
}

// WriteBytes adds an entry with the given content.
func (w *Writer) WriteBytes(name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	return w.add(hdr, bytes.NewReader(data))
}

// WriteFile adds the local file source under name. The modification time
// and mode of the file are kept.
func (w *Writer) WriteFile(name, source string) error {
	f, err := os.Open(source)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Format = tar.FormatPAX
	return w.add(hdr, f)
}

func (w *Writer) add(hdr *tar.Header, r io.Reader) error {
	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	hw, err := util.NewHashWriter(w.tw, util.MD5, util.SHA256)
	if err != nil {
		return err
	}
	n, err := io.Copy(hw, r)
	w.sz += n
	if err != nil {
		return err
	}
	w.entries = append(w.entries, Entry{
		Name:   hdr.Name,
		Size:   n,
		MD5:    hw.Sum(util.MD5),
		SHA256: hw.Sum(util.SHA256),
	})
	return nil
}

// Entries returns the entries written so far, in order.
func (w *Writer) Entries() []Entry {
	return w.entries
}

// Count is the number of entries written.
func (w *Writer) Count() int {
	return len(w.entries)
}

// Size is the number of content bytes written.
func (w *Writer) Size() int64 {
	return w.sz
}

// HumanSize gives Size in a readable form, such as "83 MB".
func (w *Writer) HumanSize() string {
	return humanize.Bytes(uint64(w.sz))
}

// Close finishes the tar stream. It does not close the original io.Writer
// provided to NewWriter().
func (w *Writer) Close() error {
	return w.tw.Close()
}
