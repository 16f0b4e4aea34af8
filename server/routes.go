// Package server provides an HTTP service which builds packages from files
// on the server's filesystem and keeps the finished packages in a store.
//
// Builds run in the background. A client starts one with a POST to
// /sip/:name, polls /sip/:name/status until it is finished and then
// downloads the package tar from /sip/:name.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/facebookgo/httpdown"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/pack"
	"github.com/ndlib/siptools/scraper"
	"github.com/ndlib/siptools/sip"
	"github.com/ndlib/siptools/store"
	"github.com/ndlib/siptools/util"
)

// RESTServer holds the configuration for the package building service.
//
// Set the public fields and then call Run. Run will listen on Address and
// handle requests until Stop is called. Do not change any fields after
// calling Run or Handler.
type RESTServer struct {
	// Address to listen on, e.g. ":14000"
	Address string

	// Output keeps the finished packages. Run will panic if it is nil.
	Output store.Store

	// SourceRoot is the directory every path in a build request is
	// relative to. Builds are refused when it is empty.
	SourceRoot string

	Scraper scraper.Scraper
	Signer  *pack.Signer

	// NewDocument makes the manifest for a new package. The header values
	// (profile, contract, creator) come from here. Run will panic if it is
	// nil.
	NewDocument func() *mets.Document

	// Workers is the number of files characterized at once in one build.
	Workers int

	// MaxBuilds is the number of builds run at once. More wait in a
	// queue. Defaults to 2.
	MaxBuilds int

	// Validator decodes the API key of each request. If nil every request
	// is allowed.
	Validator TokenDecoder

	Clock           clock.Clock
	ShutdownTimeout time.Duration
	Log             *zap.Logger

	once   sync.Once
	gate   util.Gate
	ctx    context.Context // canceled by Stop
	cancel context.CancelFunc
	m      sync.Mutex // protects builds
	builds map[string]*Build
	wg     sync.WaitGroup // running builds
	server httpdown.Server
}

func (s *RESTServer) init() {
	s.once.Do(func() {
		if s.Output == nil {
			panic("No output storage given. Output is nil.")
		}
		if s.Log == nil {
			s.Log = zap.NewNop()
		}
		if s.Validator == nil {
			s.Log.Info("no validator given, all requests are allowed")
			s.Validator = NewNobodyDecoder()
		}
		if s.Clock == nil {
			s.Clock = clock.New()
		}
		if s.Scraper == nil {
			s.Scraper = scraper.NewCache(scraper.NewNative(s.Log))
		}
		if s.NewDocument == nil {
			panic("No document template given. NewDocument is nil.")
		}
		if s.MaxBuilds <= 0 {
			s.MaxBuilds = 2
		}
		s.gate = util.NewGate(s.MaxBuilds)
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.builds = make(map[string]*Build)
	})
}

// Handler returns the routes of the service. It may be used instead of Run
// to mount the service in another server.
func (s *RESTServer) Handler() http.Handler {
	s.init()
	return s.addRoutes()
}

// Run starts the service. It blocks listening for and handling http
// requests until Stop is called.
func (s *RESTServer) Run() error {
	s.init()
	s.Log.Info("starting siptools server",
		zap.String("version", sip.Version),
		zap.String("address", s.Address),
		zap.String("source_root", s.SourceRoot),
		zap.Int("max_builds", s.MaxBuilds))

	h := httpdown.HTTP{
		StopTimeout: s.ShutdownTimeout,
		KillTimeout: s.ShutdownTimeout,
		Clock:       s.Clock,
	}
	var err error
	s.server, err = h.ListenAndServe(&http.Server{
		Addr:    s.Address,
		Handler: s.Handler(),
	})
	if err != nil {
		s.Log.Error("listen", zap.Error(err))
		return err
	}
	return s.server.Wait()
}

// Stop cancels the running builds, waits for them to exit and then closes
// the listening socket.
func (s *RESTServer) Stop() error {
	s.init()
	s.cancel()
	s.wg.Wait()
	if s.server == nil {
		return nil
	}
	return s.server.Stop()
}

func (s *RESTServer) addRoutes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		role    Role // RoleUnknown means no API key is needed to access
		handler httprouter.Handle
	}{
		{"GET", "/", RoleUnknown, WelcomeHandler},
		{"GET", "/sip", RoleRead, s.ListHandler},
		{"GET", "/sip/:name", RoleRead, s.DownloadHandler},
		{"HEAD", "/sip/:name", RoleRead, s.DownloadHandler},
		{"POST", "/sip/:name", RoleWrite, s.BuildHandler},
		{"DELETE", "/sip/:name", RoleAdmin, s.DeleteHandler},
		{"GET", "/sip/:name/status", RoleRead, s.StatusHandler},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			s.logWrapper(s.authzWrapper(route.handler, route.role)))
	}
	return r
}

// WelcomeHandler reports the name and version of the service.
func WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "siptools (%s)\n", sip.Version)
}

func writeJSON(w http.ResponseWriter, status int, val interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(val)
}

// writeError sends err as a plain text message.
func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintln(w, err.Error())
}

// authzWrapper returns a Handler which will first verify the user token as
// having at least the given Role. The user name is added as a parameter
// "username".
func (s *RESTServer) authzWrapper(handler httprouter.Handle, leastRole Role) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := r.Header.Get("X-Api-Key")
		user, role, err := s.Validator.TokenDecode(token)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if role < leastRole {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, "Forbidden")
			return
		}
		ps = append(ps, httprouter.Param{Key: "username", Value: user})
		handler(w, r, ps)
	}
}

// logWrapper takes a handler and returns a handler which does the same
// thing, after first logging the request.
func (s *RESTServer) logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.Log.Debug("request", zap.String("method", r.Method), zap.Stringer("url", r.URL))
		handler(w, r, ps)
	}
}
