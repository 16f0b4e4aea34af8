package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/sip"
	"github.com/ndlib/siptools/store"
)

// ListHandler handles GET requests to "/sip". The optional query parameter
// "prefix" limits the list to names beginning with it.
func (s *RESTServer) ListHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result, err := s.Output.ListPrefix(r.FormValue("prefix"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if result == nil {
		result = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

// BuildHandler handles POST requests to "/sip/:name". It starts a build
// and answers 202 with the status route in the Location header.
func (s *RESTServer) BuildHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	if s.SourceRoot == "" {
		writeError(w, http.StatusForbidden, fmt.Errorf("builds are disabled: no source root configured"))
		return
	}
	if s.Signer == nil {
		writeError(w, http.StatusServiceUnavailable, sip.ErrNoSigner)
		return
	}
	if strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid package name '%s'", name))
		return
	}
	if rac, _, err := s.Output.Open(name); err == nil {
		rac.Close()
		writeError(w, http.StatusConflict, &sip.OutputExistsError{Path: name})
		return
	}
	req, err := parseBuildRequest(r.Body, s.SourceRoot)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, ok := s.startBuild(name, req)
	if !ok {
		writeError(w, http.StatusConflict, fmt.Errorf("package '%s' is already being built", name))
		return
	}
	s.Log.Info("build queued",
		zap.String("sip", name),
		zap.String("user", ps.ByName("username")))
	w.Header().Set("Location", "/sip/"+b.Name+"/status")
	w.WriteHeader(http.StatusAccepted)
}

// StatusHandler handles GET requests to "/sip/:name/status". Packages in
// the store which were not built by this process are reported finished.
func (s *RESTServer) StatusHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	b, ok := s.lookup(name)
	if !ok {
		rac, _, err := s.Output.Open(name)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("package '%s' not found", name))
			return
		}
		rac.Close()
		b = Build{Name: name, Status: StatusFinished}
	}
	writeJSON(w, http.StatusOK, b)
}

// DownloadHandler handles GET and HEAD requests to "/sip/:name". It sends
// the package tar.
func (s *RESTServer) DownloadHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	rac, size, err := s.Output.Open(name)
	if err == store.ErrNotFound || err == store.ErrKeyInvalid {
		writeError(w, http.StatusNotFound, fmt.Errorf("package '%s' not found", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer rac.Close()
	w.Header().Set("Content-Type", "application/x-tar")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if r.Method == "HEAD" {
		return
	}
	if _, err := io.Copy(w, store.NewReader(rac)); err != nil {
		s.Log.Warn("sending package", zap.String("sip", name), zap.Error(err))
	}
}

// DeleteHandler handles DELETE requests to "/sip/:name". Packages still
// being built cannot be deleted.
func (s *RESTServer) DeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	s.m.Lock()
	b, ok := s.builds[name]
	if ok && (b.Status == StatusQueued || b.Status == StatusBuilding) {
		s.m.Unlock()
		writeError(w, http.StatusConflict, fmt.Errorf("package '%s' is being built", name))
		return
	}
	delete(s.builds, name)
	s.m.Unlock()

	if err := s.Output.Delete(name); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.Log.Info("package deleted",
		zap.String("sip", name),
		zap.String("user", ps.ByName("username")))
	w.WriteHeader(http.StatusNoContent)
}
