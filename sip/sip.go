package sip

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/pack"
	"github.com/ndlib/siptools/store"
)

// A Builder assembles packages from files.
type Builder struct {
	Run       *Run
	Generator *Generator // needed by FromDirectory
	Workers   int        // concurrent generations, defaults to the number of CPUs
	Log       *zap.Logger
}

func (b *Builder) logger() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}

// FromFiles returns a package with doc as its manifest. When files is not
// empty a default structural map is built from them and added to doc.
func (b *Builder) FromFiles(doc *mets.Document, files []*File) (*SIP, error) {
	s := &SIP{
		METS:  doc,
		files: make(map[*mets.DigitalObject]*File),
		log:   b.logger(),
	}
	if doc.CreateDate.IsZero() && b.Run != nil {
		doc.CreateDate = b.Run.Started()
	}
	if len(files) == 0 {
		return s, nil
	}
	sm, placed, err := buildStructuralMap(b.Run, files)
	if err != nil {
		return nil, err
	}
	doc.AddStructuralMap(sm)
	s.defaultMap = sm
	s.files = placed
	return s, nil
}

// FromDirectory returns a package holding every regular file below dir,
// placed at its path relative to dir. Technical metadata is generated for
// each file using the builder's Generator.
func (b *Builder) FromDirectory(ctx context.Context, dir string, doc *mets.Document) (*SIP, error) {
	if b.Generator == nil {
		return nil, ErrNoGenerator
	}
	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("Path '%s' does not exist.", dir)
	}
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("Path '%s' is not a directory.", dir)
	}

	var files []*File
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			// only links to regular files are followed
			target, err := os.Stat(p)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f, err := NewFile(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := b.logger()
	log.Info("generating technical metadata",
		zap.String("directory", dir),
		zap.Int("files", len(files)),
		zap.Int("workers", workers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			_, err := b.Generator.Generate(gctx, f, TechnicalOptions{})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b.FromFiles(doc, files)
}

// A SIP is a package being assembled around a METS document.
type SIP struct {
	METS *mets.Document

	files      map[*mets.DigitalObject]*File
	defaultMap *mets.StructuralMap
	log        *zap.Logger
}

// Files returns the files of the package sorted by their package path.
func (s *SIP) Files() []*File {
	result := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SIPPath() < result[j].SIPPath() })
	return result
}

// DefaultStructuralMap returns the map built from the package files, or
// nil if the package was made without files.
func (s *SIP) DefaultStructuralMap() *mets.StructuralMap {
	return s.defaultMap
}

// AddMetadata attaches metadata to the root of the default structural
// map, which applies it to the whole package.
func (s *SIP) AddMetadata(md ...mets.Metadata) error {
	if s.defaultMap == nil {
		return ErrNoStructuralMap
	}
	root := s.defaultMap.Root
	for _, m := range md {
		root.Metadata.Add(m)
		if _, ok := m.(*mets.ImportedMetadata); ok && m.IsDescriptive() {
			root.Metadata.Add(importProvenance()...)
		}
	}
	return nil
}

// Finalize writes the package as a tar stream to dst under key. The
// manifest is written as mets.xml, followed by its signature and then every
// digital object at its package path. Nothing is left under key if
// writing fails.
func (s *SIP) Finalize(ctx context.Context, dst store.Store, key string, signer *pack.Signer) error {
	objects := s.METS.DigitalObjects()
	if len(objects) == 0 {
		return ErrNoDigitalObjects
	}
	if signer == nil {
		return ErrNoSigner
	}
	sources := make([]string, len(objects))
	for i, o := range objects {
		f, ok := s.files[o]
		if !ok {
			return errors.Errorf("Digital object '%s' has no source file", o.Path)
		}
		sources[i] = f.Path()
	}

	var manifest bytes.Buffer
	if err := s.METS.Write(&manifest); err != nil {
		return err
	}
	signature, err := signer.Sign(pack.SignedFile{Name: pack.ManifestName, Data: manifest.Bytes()})
	if err != nil {
		return errors.Wrap(err, "signing manifest")
	}

	out, err := dst.Create(key)
	if err == store.ErrKeyExists {
		return &OutputExistsError{Path: key}
	}
	if err != nil {
		return err
	}
	w := pack.NewWriter(out)
	err = s.writePackage(ctx, w, manifest.Bytes(), signature, objects, sources)
	if err == nil {
		err = w.Close()
	}
	cerr := out.Close()
	if cerr == store.ErrKeyExists {
		// someone else finished writing key first
		return &OutputExistsError{Path: key}
	}
	if err == nil {
		err = cerr
	}
	if err != nil {
		dst.Delete(key)
		return err
	}
	s.log.Info("finalized SIP",
		zap.String("key", key),
		zap.Int("entries", w.Count()),
		zap.String("size", w.HumanSize()))
	return nil
}

func (s *SIP) writePackage(ctx context.Context, w *pack.Writer, manifest, signature []byte, objects []*mets.DigitalObject, sources []string) error {
	modTime := s.METS.CreateDate
	if modTime.IsZero() {
		modTime = time.Now()
	}
	if err := w.WriteBytes(pack.ManifestName, manifest, modTime); err != nil {
		return err
	}
	if err := w.WriteBytes(pack.SignatureName, signature, modTime); err != nil {
		return err
	}
	for i, o := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.WriteFile(o.Path, sources[i]); err != nil {
			return errors.Wrapf(err, "adding %s", o.Path)
		}
	}
	return nil
}

// FinalizeToPath writes the package as a tar file at output, which must
// not exist.
func (s *SIP) FinalizeToPath(ctx context.Context, output string, signer *pack.Signer) error {
	dir, name := filepath.Split(filepath.Clean(output))
	if dir == "" {
		dir = "."
	}
	err := s.Finalize(ctx, store.NewFileSystem(dir), name, signer)
	if e, ok := err.(*OutputExistsError); ok {
		e.Path = output
	}
	return err
}
