package pack

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// PEM block types in key and signature files.
const (
	signatureBlock   = "SIGNATURE"
	certificateBlock = "CERTIFICATE"
)

// A SignedFile is a file whose digest is listed in a signature.
type SignedFile struct {
	Name string
	Data []byte
}

// A Signer signs packages with an RSA private key. If Certificate is set
// it is appended to every signature so the package can be verified
// without a separate public key.
type Signer struct {
	key         *rsa.PrivateKey
	Certificate *x509.Certificate
}

// NewSigner returns a signer using key.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner reads a PEM file holding an RSA private key in PKCS#1 or
// PKCS#8 form, and optionally a certificate.
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Signer{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			s.key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			var key interface{}
			key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
			if err == nil {
				var ok bool
				if s.key, ok = key.(*rsa.PrivateKey); !ok {
					err = errors.New("signing key is not an RSA key")
				}
			}
		case certificateBlock:
			s.Certificate, err = x509.ParseCertificate(block.Bytes)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	}
	if s.key == nil {
		return nil, errors.Errorf("no RSA private key in %s", path)
	}
	return s, nil
}

// PublicKey returns the public half of the signing key.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// manifest returns the digest lines for files.
func manifest(files []SignedFile) []byte {
	var buf bytes.Buffer
	for _, f := range files {
		sum := sha1.Sum(f.Data)
		fmt.Fprintf(&buf, "%s:sha1:%s\n", f.Name, hex.EncodeToString(sum[:]))
	}
	return buf.Bytes()
}

// Sign returns the content of a signature file covering files. It is the
// digest lines followed by a PEM encoded signature of those lines.
func (s *Signer) Sign(files ...SignedFile) ([]byte, error) {
	lines := manifest(files)
	digest := sha256.Sum256(lines)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(lines)
	writePEM(&buf, signatureBlock, sig)
	if s.Certificate != nil {
		writePEM(&buf, certificateBlock, s.Certificate.Raw)
	}
	return buf.Bytes(), nil
}

func writePEM(w io.Writer, typ string, b []byte) {
	// pem.Encode only fails when the writer does
	_ = pem.Encode(w, &pem.Block{Type: typ, Bytes: b})
}
