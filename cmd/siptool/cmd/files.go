package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ndlib/siptools/scraper"
	"github.com/ndlib/siptools/sip"
)

// fileList is the layout of the file given to the files command.
//
//	label: Letters 1901-1910
//	files:
//	  - source: scans/0001.tif
//	    path: letters/0001.tif
//	    format: image/tiff
//	    version: "6.0"
//	  - source: notes.txt
//	    charset: UTF-8
//	metadata:
//	  - dc.xml
//
// Relative paths are taken from the directory holding the list.
type fileList struct {
	Label    string      `yaml:"label"`
	Files    []fileEntry `yaml:"files"`
	Metadata []string    `yaml:"metadata"`
}

type fileEntry struct {
	Source            string `yaml:"source"`
	Path              string `yaml:"path"`
	Format            string `yaml:"format"`
	Version           string `yaml:"version"`
	ChecksumAlgorithm string `yaml:"checksum_algorithm"`
	Checksum          string `yaml:"checksum"`
	Charset           string `yaml:"charset"`
	Identifier        string `yaml:"identifier"`
	IdentifierType    string `yaml:"identifier_type"`
	ScrapeResult      string `yaml:"scrape_result"`
}

func readFileList(path string) (*fileList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var list fileList
	d := yaml.NewDecoder(f)
	d.KnownFields(true)
	if err := d.Decode(&list); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	base := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range list.Files {
		e := &list.Files[i]
		if e.Source == "" {
			return nil, errors.Errorf("%s: files[%d] has no source", path, i)
		}
		if e.Path == "" {
			e.Path = filepath.ToSlash(e.Source)
		}
		e.Source = resolve(e.Source)
		e.ScrapeResult = resolve(e.ScrapeResult)
	}
	for i := range list.Metadata {
		list.Metadata[i] = resolve(list.Metadata[i])
	}
	return &list, nil
}

// options returns the technical metadata options for the entry. A saved
// scrape result is taken from the entry or else from the cache directory.
func (e *fileEntry) options(cacheDir string) (sip.TechnicalOptions, error) {
	opts := sip.TechnicalOptions{
		FileFormat:           e.Format,
		FileFormatVersion:    e.Version,
		ChecksumAlgorithm:    e.ChecksumAlgorithm,
		Checksum:             e.Checksum,
		Charset:              e.Charset,
		ObjectIdentifier:     e.Identifier,
		ObjectIdentifierType: e.IdentifierType,
	}
	saved := e.ScrapeResult
	if saved == "" && cacheDir != "" {
		candidate := filepath.Join(cacheDir, filepath.FromSlash(e.Path)+".json")
		if _, err := os.Stat(candidate); err == nil {
			saved = candidate
		}
	}
	if saved != "" {
		result, err := scraper.LoadResult(saved)
		if err != nil {
			return opts, errors.Wrapf(err, "loading scrape result %s", saved)
		}
		opts.ScraperResult = result
	}
	return opts, nil
}

func newFilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files <file list> <output>",
		Short: "Build a package from the files named in a YAML list",
		Long: `Build a package from the files named in a YAML list. Each entry gives a
source file and optionally its path inside the package, a predefined format
and version, checksum, character set, identifier or a saved scrape result.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := readFileList(args[0])
			if err != nil {
				return err
			}
			label := list.Label
			if cmd.Flags().Changed("label") {
				label = a.params.build.label
			}
			doc, err := a.document(label)
			if err != nil {
				return err
			}
			b := a.builder()

			files := make([]*sip.File, len(list.Files))
			opts := make([]sip.TechnicalOptions, len(list.Files))
			for i := range list.Files {
				e := &list.Files[i]
				if files[i], err = sip.NewFile(e.Source, e.Path); err != nil {
					return err
				}
				if opts[i], err = e.options(a.params.build.scrapeCache); err != nil {
					return err
				}
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(b.Workers)
			for i := range files {
				i := i
				g.Go(func() error {
					_, err := b.Generator.Generate(ctx, files[i], opts[i])
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			a.log.Debug("generated technical metadata", zap.Int("files", len(files)))

			pkg, err := b.FromFiles(doc, files)
			if err != nil {
				return err
			}
			metadata := append(list.Metadata, a.params.build.metadata...)
			if err := a.addMetadata(pkg, metadata); err != nil {
				return err
			}
			return a.finalize(cmd.Context(), cmd, pkg, args[1])
		},
	}
	addLabel(cmd, &a.params)
	addMetadataFiles(cmd, &a.params)
	addScrapeCache(cmd, &a.params)
	return cmd
}
