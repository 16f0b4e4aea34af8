package pack

import (
	"archive/tar"
	"bufio"
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/siptools/util"
)

var (
	// ErrNoSignature means the package has no signature file.
	ErrNoSignature = errors.New("Package has no signature file")

	// ErrNoPublicKey means neither a key nor trusted certificates were
	// given to verify the signature with.
	ErrNoPublicKey = errors.New("No public key to verify the signature with")

	// ErrNoCertificate means the signature carries no certificate to check
	// against the trusted roots.
	ErrNoCertificate = errors.New("Signature has no certificate")

	// ErrBadSignature means the signature does not match its digest lines.
	ErrBadSignature = errors.New("Signature verification failed")
)

// DigestError is returned when a file listed in the signature is missing
// or has a different digest.
type DigestError struct {
	Name    string
	Missing bool
}

func (e *DigestError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Signed file '%s' is missing from the package", e.Name)
	}
	return fmt.Sprintf("Digest of '%s' does not match the signature", e.Name)
}

// A Report describes a verified package.
type Report struct {
	Entries []Entry  // every file in the package, in order
	Signed  []string // names listed in the signature
}

var signatureAlgorithms = map[string]string{
	"md5":    util.MD5,
	"sha1":   util.SHA1,
	"sha256": util.SHA256,
}

// UntrustedCertificateError is returned when the certificate in a
// signature does not chain to any trusted root.
type UntrustedCertificateError struct {
	Subject string
	Err     error
}

func (e *UntrustedCertificateError) Error() string {
	return fmt.Sprintf("Signature certificate '%s' is not trusted: %v", e.Subject, e.Err)
}

// Verify reads a package tar stream from r and checks its signature with
// pub and the digests it lists.
func Verify(r io.Reader, pub *rsa.PublicKey) (*Report, error) {
	return verify(r, func(*x509.Certificate) (*rsa.PublicKey, error) {
		if pub == nil {
			return nil, ErrNoPublicKey
		}
		return pub, nil
	})
}

// VerifyWithRoots is like Verify, but takes the key from the certificate
// in the signature file. The certificate must chain to one of roots.
func VerifyWithRoots(r io.Reader, roots *x509.CertPool) (*Report, error) {
	return verify(r, func(cert *x509.Certificate) (*rsa.PublicKey, error) {
		if roots == nil {
			return nil, ErrNoPublicKey
		}
		if cert == nil {
			return nil, ErrNoCertificate
		}
		_, err := cert.Verify(x509.VerifyOptions{
			Roots:     roots,
			KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		})
		if err != nil {
			return nil, &UntrustedCertificateError{Subject: cert.Subject.String(), Err: err}
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("Signature certificate does not hold an RSA key")
		}
		return pub, nil
	})
}

// LoadCertPool reads the PEM encoded certificates in path.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, errors.Errorf("No certificates found in %s", path)
	}
	return pool, nil
}

func verify(r io.Reader, keyFor func(*x509.Certificate) (*rsa.PublicKey, error)) (*Report, error) {
	report := &Report{}
	digests := make(map[string]*util.HashWriter)
	var signature []byte
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		hw, _ := util.NewHashWriterPlain(util.MD5, util.SHA1, util.SHA256)
		var body io.Writer = hw
		var buf bytes.Buffer
		if hdr.Name == SignatureName {
			body = io.MultiWriter(hw, &buf)
		}
		n, err := io.Copy(body, tr)
		if err != nil {
			return nil, err
		}
		if hdr.Name == SignatureName {
			signature = buf.Bytes()
		}
		digests[hdr.Name] = hw
		report.Entries = append(report.Entries, Entry{
			Name:   hdr.Name,
			Size:   n,
			MD5:    hw.Sum(util.MD5),
			SHA256: hw.Sum(util.SHA256),
		})
	}
	if signature == nil {
		return report, ErrNoSignature
	}

	lines, sig, cert, err := splitSignature(signature)
	if err != nil {
		return report, err
	}
	pub, err := keyFor(cert)
	if err != nil {
		return report, err
	}
	digest := sha256.Sum256(lines)
	if rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) != nil {
		return report, ErrBadSignature
	}

	scanner := bufio.NewScanner(bytes.NewReader(lines))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// names may contain colons, so split from the right
		j := strings.LastIndex(line, ":")
		i := strings.LastIndex(line[:max(j, 0)], ":")
		if i < 0 {
			return report, errors.Errorf("Malformed signature line '%s'", line)
		}
		name, alg, sum := line[:i], line[i+1:j], line[j+1:]
		report.Signed = append(report.Signed, name)
		hw, ok := digests[name]
		if !ok {
			return report, &DigestError{Name: name, Missing: true}
		}
		algorithm, ok := signatureAlgorithms[alg]
		if !ok {
			return report, errors.Errorf("Unknown digest algorithm '%s' in signature", alg)
		}
		if hw.Hex(algorithm) != strings.ToLower(sum) {
			return report, &DigestError{Name: name}
		}
	}
	return report, scanner.Err()
}

// splitSignature separates the digest lines of a signature file from its
// PEM blocks.
func splitSignature(data []byte) ([]byte, []byte, *x509.Certificate, error) {
	i := bytes.Index(data, []byte("-----BEGIN "))
	if i < 0 {
		return nil, nil, nil, ErrBadSignature
	}
	lines, rest := data[:i], data[i:]
	var sig []byte
	var cert *x509.Certificate
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case signatureBlock:
			sig = block.Bytes
		case certificateBlock:
			c, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, nil, nil, errors.Wrap(err, "signature certificate")
			}
			cert = c
		}
	}
	if sig == nil {
		return nil, nil, nil, ErrBadSignature
	}
	return lines, sig, cert, nil
}

