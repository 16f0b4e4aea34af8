package server

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// A TokenDecoder validates and decodes the API keys passed to the service.
// An unknown key gives the user "" with RoleUnknown. An error is returned
// only when the lookup itself failed.
type TokenDecoder interface {
	TokenDecode(token string) (user string, role Role, err error)
}

// Role is what a user may do. Each role includes the ones before it.
type Role int

const (
	RoleUnknown Role = iota
	RoleRead         // list and download packages, read build status
	RoleWrite        // start builds
	RoleAdmin        // delete packages
)

func atoRole(s string) Role {
	switch strings.ToLower(s) {
	case "read":
		return RoleRead
	case "write":
		return RoleWrite
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// NewNobodyDecoder creates a TokenDecoder that for every possible token
// returns a user named "nobody" with the Admin role. It is for services
// reachable only from trusted hosts.
func NewNobodyDecoder() TokenDecoder {
	return nobodyDecoder{}
}

type nobodyDecoder struct{}

func (nobodyDecoder) TokenDecode(token string) (string, Role, error) {
	return "nobody", RoleAdmin, nil
}

// NewListDecoder returns a decoder backed by the user list read from r.
// Each line has the form
//
//	<user name>  <role>  <token>
//
// separated by spaces or tabs. The role is one of "Read", "Write" or
// "Admin" (case insensitive). Empty lines and lines beginning with '#' are
// skipped, as are lines with the wrong number of fields.
func NewListDecoder(r io.Reader) (TokenDecoder, error) {
	users := make(listDecoder)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pieces := strings.Fields(scanner.Text())
		if len(pieces) != 3 || strings.HasPrefix(pieces[0], "#") {
			continue
		}
		users[pieces[2]] = userEntry{user: pieces[0], role: atoRole(pieces[1])}
	}
	return users, scanner.Err()
}

// NewListDecoderFile reads the user list from the named file.
func NewListDecoderFile(fname string) (TokenDecoder, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewListDecoder(f)
}

type userEntry struct {
	user string
	role Role
}

// listDecoder maps tokens to users.
type listDecoder map[string]userEntry

func (ld listDecoder) TokenDecode(token string) (string, Role, error) {
	u, ok := ld[token]
	if !ok || token == "" {
		return "", RoleUnknown, nil
	}
	return u.user, u.role, nil
}
