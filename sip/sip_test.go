package sip

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/pack"
	"github.com/ndlib/siptools/scraper"
	"github.com/ndlib/siptools/store"
)

var (
	signerOnce sync.Once
	testSigner *pack.Signer
)

func signer(t *testing.T) *pack.Signer {
	signerOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testSigner = pack.NewSigner(key)
	})
	return testSigner
}

func newDocument() *mets.Document {
	return mets.NewDocument(mets.ProfileCulturalHeritage, "urn:uuid:74b3c4d6-3f4e-4d1b-9d0f-b0a3e6b7c6f1", "Test Organization", mets.CreatorOrganization)
}

// makeTree writes the given package paths below a new directory.
func makeTree(t *testing.T, paths ...string) string {
	dir := t.TempDir()
	for _, p := range paths {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("content of "+p+"\n"), 0644))
	}
	return dir
}

func testBuilder(t *testing.T, s scraper.Scraper) *Builder {
	run := testRun()
	log := zaptest.NewLogger(t)
	return &Builder{
		Run:       run,
		Generator: NewGenerator(s, run, log),
		Workers:   2,
		Log:       log,
	}
}

func TestFromFilesEmpty(t *testing.T) {
	b := testBuilder(t, nil)
	s, err := b.FromFiles(newDocument(), nil)
	require.NoError(t, err)
	assert.Nil(t, s.DefaultStructuralMap())
	assert.Empty(t, s.Files())
	assert.Equal(t, ErrNoStructuralMap, s.AddMetadata(mets.NewSoftwareAgent("x", "1")))

	err = s.Finalize(context.Background(), store.NewMemory(), "sip.tar", signer(t))
	require.Error(t, err)
	assert.Equal(t, "SIP does not contain any digital objects.", err.Error())
}

func TestFromDirectoryErrors(t *testing.T) {
	dir := makeTree(t, "a.txt")
	b := testBuilder(t, &fakeScraper{result: textResult()})

	missing := filepath.Join(dir, "missing")
	_, err := b.FromDirectory(context.Background(), missing, newDocument())
	require.Error(t, err)
	assert.Equal(t, "Path '"+missing+"' does not exist.", err.Error())

	file := filepath.Join(dir, "a.txt")
	_, err = b.FromDirectory(context.Background(), file, newDocument())
	require.Error(t, err)
	assert.Equal(t, "Path '"+file+"' is not a directory.", err.Error())

	b.Generator = nil
	_, err = b.FromDirectory(context.Background(), dir, newDocument())
	assert.Equal(t, ErrNoGenerator, err)
}

func TestFromDirectory(t *testing.T) {
	dir := makeTree(t, "a/1.txt", "a/2.txt", "b/3.txt")
	s := &fakeScraper{result: textResult()}
	b := testBuilder(t, s)
	doc := newDocument()
	result, err := b.FromDirectory(context.Background(), dir, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, b.Run.Started(), doc.CreateDate)

	var paths []string
	for _, f := range result.Files() {
		paths = append(paths, f.SIPPath())
		assert.True(t, f.Generated())
	}
	assert.Equal(t, []string{"a/1.txt", "a/2.txt", "b/3.txt"}, paths)
	require.Len(t, doc.StructuralMaps, 1)
	assert.Same(t, doc.StructuralMaps[0], result.DefaultStructuralMap())
	assert.Equal(t, "directory:\n  directory:a\n    file:1.txt [a/1.txt]\n    file:2.txt [a/2.txt]\n  directory:b\n    file:3.txt [b/3.txt]\n",
		shape(result.DefaultStructuralMap().Root))
}

func TestFromDirectoryScraperError(t *testing.T) {
	dir := makeTree(t, "a.txt", "b.txt")
	b := testBuilder(t, &fakeScraper{err: os.ErrPermission})
	_, err := b.FromDirectory(context.Background(), dir, newDocument())
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestFromDirectoryNative(t *testing.T) {
	dir := makeTree(t, "docs/readme.txt", "docs/notes.txt")
	b := testBuilder(t, scraper.NewNative(nil))
	s, err := b.FromDirectory(context.Background(), dir, newDocument())
	require.NoError(t, err)
	for _, f := range s.Files() {
		assert.True(t, f.Generated())
		assert.NotEmpty(t, ofType[*mets.TechnicalFileObject](f.Metadata())[0].Checksum)
	}
}

func TestFromDirectoryNativeMedia(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.tif"), []byte("II*\x00\x08\x00\x00\x00"), 0644))
	mp3 := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 32)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.mp3"), mp3, 0644))

	b := testBuilder(t, scraper.NewNative(nil))
	s, err := b.FromDirectory(context.Background(), dir, newDocument())
	require.NoError(t, err)
	files := make(map[string]*File)
	for _, f := range s.Files() {
		files[f.SIPPath()] = f
	}
	require.Len(t, files, 2)

	img := ofType[*mets.TechnicalImage](files["scan.tif"].Metadata())
	require.Len(t, img, 1)
	assert.Equal(t, mets.UNAV, img[0].Compression)
	assert.Equal(t, mets.UNAV, img[0].Width)

	audio := ofType[*mets.TechnicalAudio](files["song.mp3"].Metadata())
	require.Len(t, audio, 1)
	assert.Equal(t, mets.UNAV, audio[0].CodecQuality)
	assert.Equal(t, "0", audio[0].DataRate)
}

func TestSIPAddMetadata(t *testing.T) {
	dir := makeTree(t, "a.txt")
	b := testBuilder(t, &fakeScraper{result: textResult()})
	s, err := b.FromDirectory(context.Background(), dir, newDocument())
	require.NoError(t, err)

	dmd, err := mets.NewImportedMetadata([]byte(`<mods xmlns="http://www.loc.gov/mods/v3" version="3.7"><titleInfo><title>t</title></titleInfo></mods>`))
	require.NoError(t, err)
	require.NoError(t, s.AddMetadata(dmd))
	root := s.DefaultStructuralMap().Root.Metadata
	assert.True(t, root.Contains(dmd))
	assert.Contains(t, eventTypes(root.Items()), "metadata extraction")
}

func TestFinalize(t *testing.T) {
	dir := makeTree(t, "a/1.txt", "a/2.txt", "b/3.txt")
	b := testBuilder(t, &fakeScraper{result: textResult()})
	s, err := b.FromDirectory(context.Background(), dir, newDocument())
	require.NoError(t, err)

	dst := store.NewMemory()
	err = s.Finalize(context.Background(), dst, "sip.tar", nil)
	assert.Equal(t, ErrNoSigner, err)
	keys, _ := dst.ListPrefix("")
	assert.Empty(t, keys)

	require.NoError(t, s.Finalize(context.Background(), dst, "sip.tar", signer(t)))

	r, size, err := dst.Open("sip.tar")
	require.NoError(t, err)
	report, err := pack.Verify(store.NewReader(r), signer(t).PublicKey())
	require.NoError(t, err)
	assert.NotZero(t, size)
	var names []string
	for _, e := range report.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"mets.xml", "signature.sig", "a/1.txt", "a/2.txt", "b/3.txt"}, names)
	assert.Equal(t, []string{"mets.xml"}, report.Signed)

	err = s.Finalize(context.Background(), dst, "sip.tar", signer(t))
	assert.Equal(t, &OutputExistsError{Path: "sip.tar"}, err)
}

func TestFinalizeCanceled(t *testing.T) {
	dir := makeTree(t, "a.txt")
	b := testBuilder(t, &fakeScraper{result: textResult()})
	s, err := b.FromDirectory(context.Background(), dir, newDocument())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := store.NewMemory()
	err = s.Finalize(ctx, dst, "sip.tar", signer(t))
	assert.Equal(t, context.Canceled, err)
	_, _, err = dst.Open("sip.tar")
	assert.Equal(t, store.ErrNotFound, err)
}

func TestFinalizeToPath(t *testing.T) {
	dir := makeTree(t, "a.txt")
	b := testBuilder(t, &fakeScraper{result: textResult()})
	s, err := b.FromDirectory(context.Background(), dir, newDocument())
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "package.tar")
	require.NoError(t, s.FinalizeToPath(context.Background(), output, signer(t)))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	_, err = pack.Verify(bytes.NewReader(data), signer(t).PublicKey())
	assert.NoError(t, err)

	err = s.FinalizeToPath(context.Background(), output, signer(t))
	require.Error(t, err)
	assert.Equal(t, "Given output filepath '"+output+"' exists already.", err.Error())
}
