package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/antonholmquist/jason"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/sip"
)

// BuildStatus is the state of a package build.
type BuildStatus int

const (
	StatusUnknown BuildStatus = iota
	StatusQueued
	StatusBuilding
	StatusFinished
	StatusError
)

var statusNames = map[BuildStatus]string{
	StatusUnknown:  "unknown",
	StatusQueued:   "queued",
	StatusBuilding: "building",
	StatusFinished: "finished",
	StatusError:    "error",
}

func (bs BuildStatus) String() string {
	return statusNames[bs]
}

// MarshalJSON writes the status by name.
func (bs BuildStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(bs.String())
}

// A Build tracks one package being built.
type Build struct {
	Name     string
	Status   BuildStatus
	Created  time.Time
	Modified time.Time
	Files    int      `json:",omitempty"`
	Err      []string `json:",omitempty"`
}

// buildRequest is the body of a build POST. Either Directory or Files is
// set. All paths are absolute after parsing.
type buildRequest struct {
	Label     string
	Directory string
	Files     []fileRequest
	Metadata  []string
}

type fileRequest struct {
	Source  string
	Path    string // inside the package
	Format  string
	Version string
}

// resolvePath returns p as a path below root. Paths escaping root are
// refused.
func resolvePath(root, p string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", fmt.Errorf("path '%s' is outside the source root", p)
	}
	return filepath.Join(root, filepath.FromSlash(p)), nil
}

// parseBuildRequest decodes a request of the form
//
//	{"label": "...",
//	 "directory": "relative/dir",
//	 "files": [{"source": "relative/file", "path": "in/package", "format": "...", "version": "..."}],
//	 "metadata": ["relative/dc.xml"]}
func parseBuildRequest(r io.Reader, root string) (*buildRequest, error) {
	v, err := jason.NewObjectFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "request body")
	}
	req := &buildRequest{}
	req.Label, _ = v.GetString("label")
	if dir, err := v.GetString("directory"); err == nil {
		req.Directory, err = resolvePath(root, dir)
		if err != nil {
			return nil, err
		}
	}
	files, _ := v.GetObjectArray("files")
	for i, f := range files {
		var fr fileRequest
		source, err := f.GetString("source")
		if err != nil {
			return nil, fmt.Errorf("files[%d]: source is missing", i)
		}
		fr.Source, err = resolvePath(root, source)
		if err != nil {
			return nil, err
		}
		fr.Path, err = f.GetString("path")
		if err != nil {
			fr.Path = source
		}
		fr.Format, _ = f.GetString("format")
		fr.Version, _ = f.GetString("version")
		req.Files = append(req.Files, fr)
	}
	metadata, _ := v.GetStringArray("metadata")
	for _, p := range metadata {
		full, err := resolvePath(root, p)
		if err != nil {
			return nil, err
		}
		req.Metadata = append(req.Metadata, full)
	}
	if (req.Directory == "") == (len(req.Files) == 0) {
		return nil, errors.New("exactly one of directory or files must be given")
	}
	return req, nil
}

// startBuild records a new build and runs it in the background. It
// returns false if a build with that name is already known.
func (s *RESTServer) startBuild(name string, req *buildRequest) (*Build, bool) {
	now := s.Clock.Now()
	s.m.Lock()
	defer s.m.Unlock()
	if b, ok := s.builds[name]; ok && b.Status != StatusError {
		return nil, false
	}
	b := &Build{Name: name, Status: StatusQueued, Created: now, Modified: now}
	s.builds[name] = b
	s.wg.Add(1)
	go s.runBuild(b, req)
	return b, true
}

// lookup returns a copy of the named build record.
func (s *RESTServer) lookup(name string) (Build, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.builds[name]
	if !ok {
		return Build{}, false
	}
	return *b, true
}

func (s *RESTServer) setStatus(b *Build, status BuildStatus, err error) {
	s.m.Lock()
	defer s.m.Unlock()
	b.Status = status
	b.Modified = s.Clock.Now()
	if err != nil {
		b.Err = append(b.Err, err.Error())
	}
}

func (s *RESTServer) runBuild(b *Build, req *buildRequest) {
	defer s.wg.Done()
	log := s.Log.With(zap.String("sip", b.Name))
	if !s.gate.Enter(s.ctx) {
		s.setStatus(b, StatusError, s.ctx.Err())
		return
	}
	defer s.gate.Leave()
	s.setStatus(b, StatusBuilding, nil)
	log.Info("build started")

	n, err := s.build(s.ctx, b.Name, req, log)
	s.m.Lock()
	b.Files = n
	s.m.Unlock()
	if err != nil {
		log.Error("build failed", zap.Error(err))
		raven.CaptureError(err, map[string]string{"SIP": b.Name})
		s.setStatus(b, StatusError, err)
		return
	}
	log.Info("build finished", zap.Int("files", n))
	s.setStatus(b, StatusFinished, nil)
}

// build assembles and finalizes one package, returning the number of
// files in it.
func (s *RESTServer) build(ctx context.Context, name string, req *buildRequest, log *zap.Logger) (int, error) {
	run := sip.NewRun(s.Clock)
	gen := sip.NewGenerator(s.Scraper, run, log)
	builder := &sip.Builder{Run: run, Generator: gen, Workers: s.Workers, Log: log}
	doc := s.NewDocument()
	if req.Label != "" {
		doc.Label = req.Label
	}

	var pkg *sip.SIP
	var err error
	if req.Directory != "" {
		pkg, err = builder.FromDirectory(ctx, req.Directory, doc)
	} else {
		var files []*sip.File
		for _, fr := range req.Files {
			f, err := sip.NewFile(fr.Source, fr.Path)
			if err != nil {
				return 0, err
			}
			opts := sip.TechnicalOptions{FileFormat: fr.Format, FileFormatVersion: fr.Version}
			if _, err := gen.Generate(ctx, f, opts); err != nil {
				return 0, err
			}
			files = append(files, f)
		}
		pkg, err = builder.FromFiles(doc, files)
	}
	if err != nil {
		return 0, err
	}
	for _, p := range req.Metadata {
		md, err := mets.ImportMetadataFile(p)
		if err != nil {
			return 0, err
		}
		if err := pkg.AddMetadata(md); err != nil {
			return 0, err
		}
	}
	n := len(pkg.Files())
	return n, pkg.Finalize(ctx, s.Output, name, s.Signer)
}
