package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/pack"
	"github.com/ndlib/siptools/scraper"
	"github.com/ndlib/siptools/server"
	"github.com/ndlib/siptools/store"
)

// An ErrorServer wraps another http.Handler and injects errors as
// described by a given playbook. A playbook is given by calling
// Reset(). Each call to ServeHTTP on the server increments a count
// starting at 0. A play gives a count to activate, and when the
// server reaches that count it will return the given Status and
// Body. Otherwise, requests are passed on to the wrapped handler.
// This is safe for concurrent use.
type ErrorServer struct {
	h http.Handler

	m        sync.Mutex
	count    int
	playbook []Play
}

type Play struct {
	When   int
	Status int
	Body   string
}

func (s *ErrorServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.m.Lock()
	count := s.count
	s.count++
	log.Printf("(%d) %s %s\n", count, req.Method, req.URL)
	for len(s.playbook) > 0 && s.playbook[0].When <= count {
		p := s.playbook[0]
		s.playbook = s.playbook[1:]
		if p.When < count {
			// more than one play had same count. Ignore the rest.
			continue
		}
		s.m.Unlock()
		w.WriteHeader(p.Status)
		w.Write([]byte(p.Body))
		return
	}
	s.m.Unlock()
	s.h.ServeHTTP(w, req)
}

func (s *ErrorServer) Reset(playbook []Play) {
	s.m.Lock()
	s.count = 0
	s.playbook = append([]Play(nil), playbook...)
	sort.Slice(s.playbook, func(i, j int) bool { return s.playbook[i].When < s.playbook[j].When })
	s.m.Unlock()
}

type fixture struct {
	conn   *Connection
	errs   *ErrorServer
	server *server.RESTServer
	root   string
}

func setup(t *testing.T, files ...string) *fixture {
	root := t.TempDir()
	for _, p := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("content of "+p+"\n"), 0644))
	}
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	s := &server.RESTServer{
		Output:     store.NewMemory(),
		SourceRoot: root,
		Scraper:    scraper.NewNative(log),
		Signer:     pack.NewSigner(key),
		NewDocument: func() *mets.Document {
			return mets.NewDocument(mets.ProfileCulturalHeritage, "urn:uuid:3d0f1a61-0c3b-4d7c-93c5-1f8b2b4e6a90", "Test Organization", mets.CreatorOrganization)
		},
		Log: log,
	}
	errs := &ErrorServer{h: s.Handler()}
	ts := httptest.NewServer(errs)
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return &fixture{
		conn:   &Connection{HostURL: ts.URL, PollInterval: 10 * time.Millisecond},
		errs:   errs,
		server: s,
		root:   root,
	}
}

func TestBuildAndDownload(t *testing.T) {
	f := setup(t, "in/a.txt", "in/b.txt")

	loc, err := f.conn.Build("one.tar", BuildRequest{Directory: "in"})
	require.NoError(t, err)
	assert.Equal(t, "/sip/one.tar/status", loc)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, f.conn.WaitForBuild(ctx, "one.tar"))

	info, err := f.conn.Status("one.tar")
	require.NoError(t, err)
	assert.Equal(t, BuildInfo{Name: "one.tar", Status: "finished", Files: 2}, info)

	var buf bytes.Buffer
	require.NoError(t, f.conn.Download(&buf, "one.tar"))
	report, err := pack.Verify(&buf, f.server.Signer.PublicKey())
	require.NoError(t, err)
	assert.Len(t, report.Entries, 4)

	names, err := f.conn.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.tar"}, names)

	// building again is refused
	_, err = f.conn.Build("one.tar", BuildRequest{Directory: "in"})
	assert.Equal(t, ErrConflict, err)

	require.NoError(t, f.conn.Delete("one.tar"))
	assert.Equal(t, ErrNotFound, f.conn.Download(&buf, "one.tar"))
}

func TestBuildFiles(t *testing.T) {
	f := setup(t, "x/a.txt")
	_, err := f.conn.Build("files.tar", BuildRequest{
		Label: "one file",
		Files: []FileSpec{{Source: "x/a.txt", Path: "a.txt"}},
	})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, f.conn.WaitForBuild(ctx, "files.tar"))
}

func TestWaitForBuildError(t *testing.T) {
	f := setup(t)
	_, err := f.conn.Build("bad.tar", BuildRequest{Directory: "nowhere"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	err = f.conn.WaitForBuild(ctx, "bad.tar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuild))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestBadRequest(t *testing.T) {
	f := setup(t)
	_, err := f.conn.Build("bad.tar", BuildRequest{})
	var re *ResponseError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "exactly one of directory or files must be given", re.Message)
}

func TestInjectedErrors(t *testing.T) {
	f := setup(t)
	var table = []struct {
		status int
		body   string
		expect error
	}{
		{401, "", ErrNotAuthorized},
		{404, "", ErrNotFound},
		{409, "", ErrConflict},
		{500, "", ErrUnexpectedResp},
		{500, "disk full\n", &ResponseError{Status: 500, Message: "disk full"}},
	}
	for _, tab := range table {
		f.errs.Reset([]Play{{When: 0, Status: tab.status, Body: tab.body}})
		_, err := f.conn.List("")
		assert.Equal(t, tab.expect, err)
	}
}

func TestWaitForBuildCanceled(t *testing.T) {
	f := setup(t)
	// the status never leaves "building"
	var plays []Play
	for i := 0; i < 1000; i++ {
		plays = append(plays, Play{When: i, Status: 200, Body: `{"Name": "slow.tar", "Status": "building"}`})
	}
	f.errs.Reset(plays)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := f.conn.WaitForBuild(ctx, "slow.tar")
	assert.Equal(t, context.Canceled, err)
}
