package sip

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/scraper"
)

// USE values for files accepted at bit level only.
var uses = map[string]string{
	scraper.GradeBitLevel:                "fi-dpres-file-format-identification",
	scraper.GradeBitLevelWithRecommended: "fi-dpres-no-file-format-validation",
}

// TechnicalOptions override values the scraper would otherwise detect.
// Empty fields are not overridden.
type TechnicalOptions struct {
	FileFormat                 string
	FileFormatVersion          string
	ChecksumAlgorithm          string
	Checksum                   string
	FileCreatedDate            string
	ObjectIdentifierType       string
	ObjectIdentifier           string
	Charset                    string
	OriginalName               string
	FormatRegistryName         string
	FormatRegistryKey          string
	CreatingApplication        string
	CreatingApplicationVersion string

	// CSV dialect. Only allowed for text/csv files.
	CSVHasHeader        *bool
	CSVDelimiter        string
	CSVRecordSeparator  string
	CSVQuotingCharacter string

	// ScraperResult is used instead of scraping the file when set.
	ScraperResult *scraper.Result
}

func (o *TechnicalOptions) hasCSV() bool {
	header := o.CSVHasHeader != nil && *o.CSVHasHeader
	return header || o.CSVDelimiter != "" || o.CSVRecordSeparator != "" || o.CSVQuotingCharacter != ""
}

func (o *TechnicalOptions) validate() error {
	switch {
	case o.FileFormatVersion != "" && o.FileFormat == "":
		return ErrVersionWithoutFormat
	case o.FileFormat != "" && o.FileFormatVersion == "":
		return ErrFormatWithoutVersion
	case o.ChecksumAlgorithm != "" && o.Checksum == "":
		return ErrAlgorithmWithoutChecksum
	case o.Checksum != "" && o.ChecksumAlgorithm == "":
		return ErrChecksumWithoutAlgorithm
	}
	if o.ChecksumAlgorithm != "" {
		if _, err := mets.ParseChecksumAlgorithm(o.ChecksumAlgorithm); err != nil {
			return err
		}
	}
	if o.Charset != "" {
		if _, err := mets.ParseCharset(o.Charset); err != nil {
			return err
		}
	}
	if o.hasCSV() {
		format := o.FileFormat
		if format == "" && o.ScraperResult != nil {
			format = o.ScraperResult.MIMEType
		}
		if format != "text/csv" {
			return ErrCSVParameters
		}
	}
	return nil
}

func (o *TechnicalOptions) scraperOptions() scraper.Options {
	return scraper.Options{
		MIMEType:  o.FileFormat,
		Version:   o.FileFormatVersion,
		Charset:   o.Charset,
		Delimiter: o.CSVDelimiter,
		Separator: o.CSVRecordSeparator,
		QuoteChar: o.CSVQuotingCharacter,
	}
}

// A Generator creates technical metadata for files.
type Generator struct {
	Scraper scraper.Scraper
	Run     *Run
	Log     *zap.Logger
}

// NewGenerator returns a generator using s. A nil logger disables
// logging.
func NewGenerator(s scraper.Scraper, run *Run, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{Scraper: s, Run: run, Log: log}
}

// first returns the first non empty value.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Generate scrapes f and attaches technical metadata, provenance events
// and agents to it. It can succeed only once per File. On error f is left
// unchanged. The scraper result is returned so it can be reused.
func (g *Generator) Generate(ctx context.Context, f *File, opts TechnicalOptions) (*scraper.Result, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.generated {
		return nil, ErrAlreadyGenerated
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	result := opts.ScraperResult
	if result == nil {
		var err error
		result, err = g.Scraper.Scrape(ctx, f.path, opts.scraperOptions())
		if err != nil {
			return nil, errors.Wrapf(err, "scraping %s", f.path)
		}
	}
	if len(result.Streams) == 0 {
		return nil, errors.Errorf("Scraper result for %s has no streams", f.path)
	}
	md, err := g.build(f, &opts, result)
	if err != nil {
		return nil, err
	}

	f.object.Metadata.Add(md.object...)
	for _, s := range md.streams {
		f.object.AddStream().Metadata.Add(s...)
	}
	if use, ok := uses[result.Grade]; ok {
		f.object.Use = use
	}
	f.generated = true

	if g.Log != nil {
		g.Log.Debug("generated technical metadata",
			zap.String("path", f.path),
			zap.String("sip_path", f.object.Path),
			zap.String("format", result.MIMEType),
			zap.Int("streams", len(result.Streams)))
	}
	return result, nil
}

// technical is the metadata made for one file before it is committed.
type technical struct {
	object  []mets.Metadata
	streams [][]mets.Metadata
}

func (g *Generator) build(f *File, opts *TechnicalOptions, result *scraper.Result) (*technical, error) {
	container := result.Streams[0]
	var created string
	if opts.FileCreatedDate == "" {
		fi, err := os.Stat(f.path)
		if err != nil {
			return nil, err
		}
		created = fi.ModTime().UTC().Format("2006-01-02T15:04:05")
	}
	obj := &mets.TechnicalFileObject{
		FileFormat:                 first(opts.FileFormat, result.MIMEType),
		FileFormatVersion:          first(opts.FileFormatVersion, result.Version, mets.UNAP),
		ChecksumAlgorithm:          mets.ChecksumAlgorithm(first(opts.ChecksumAlgorithm, result.ChecksumAlgorithm, string(mets.MD5))),
		Checksum:                   first(opts.Checksum, result.Checksum),
		FileCreatedDate:            first(opts.FileCreatedDate, created),
		ObjectIdentifierType:       opts.ObjectIdentifierType,
		ObjectIdentifier:           opts.ObjectIdentifier,
		Charset:                    mets.Charset(first(opts.Charset, container.Get("charset", ""))),
		OriginalName:               first(opts.OriginalName, filepath.Base(f.path)),
		FormatRegistryName:         opts.FormatRegistryName,
		FormatRegistryKey:          opts.FormatRegistryKey,
		CreatingApplication:        opts.CreatingApplication,
		CreatingApplicationVersion: opts.CreatingApplicationVersion,
	}

	md := &technical{}
	for _, s := range result.Streams[1:] {
		mime, err := s.Required("mimetype")
		if err != nil {
			return nil, err
		}
		bitstream := &mets.TechnicalBitstreamObject{
			FileFormat:        mime,
			FileFormatVersion: s.Get("version", mets.UNAV),
		}
		obj.AddRelationship(bitstream, "structural", "includes")
		items := []mets.Metadata{bitstream}
		ch, err := characteristics(s, mime, f, opts)
		if err != nil {
			return nil, err
		}
		if ch != nil {
			items = append(items, ch)
		}
		md.streams = append(md.streams, items)
	}

	md.object = append(md.object, obj)
	ch, err := characteristics(container, obj.FileFormat, f, opts)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		md.object = append(md.object, ch)
	}
	md.object = append(md.object, g.provenance(opts, result)...)
	return md, nil
}

// characteristics returns the format specific metadata of a stream, or
// nil when its format has none.
func characteristics(s scraper.Stream, mime string, f *File, opts *TechnicalOptions) (mets.Metadata, error) {
	streamType := s.Get("stream_type", "")
	switch {
	case mime == "text/csv":
		return csvMetadata(s, f, opts)
	case streamType == "image" || (streamType == "" && strings.HasPrefix(mime, "image/")):
		return imageMetadata(s)
	case streamType == "audio" || (streamType == "" && strings.HasPrefix(mime, "audio/")):
		return audioMetadata(s)
	case streamType == "video" || (streamType == "" && strings.HasPrefix(mime, "video/")):
		return videoMetadata(s)
	}
	return nil, nil
}

// requireAll fetches the named keys from s, failing on the first missing.
func requireAll(s scraper.Stream, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := s.Required(k)
		if err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, nil
}

// numeric replaces the unavailable placeholder with zero for fields that
// must hold a number.
func numeric(v string) string {
	if v == mets.UNAV {
		return "0"
	}
	return v
}

func csvMetadata(s scraper.Stream, f *File, opts *TechnicalOptions) (mets.Metadata, error) {
	md := &mets.TechnicalCSV{
		Filenames:        []string{f.object.Path},
		Charset:          first(opts.Charset, s.Get("charset", "")),
		Delimiter:        first(opts.CSVDelimiter, s.Get("delimiter", "")),
		RecordSeparator:  first(opts.CSVRecordSeparator, s.Get("separator", "")),
		QuotingCharacter: first(opts.CSVQuotingCharacter, s.Get("quotechar", "")),
	}
	for _, field := range []struct{ key, value string }{
		{"delimiter", md.Delimiter},
		{"separator", md.RecordSeparator},
		{"quotechar", md.QuotingCharacter},
		{"charset", md.Charset},
	} {
		if field.value == "" {
			return nil, &scraper.MissingKeyError{Index: s.Get("index", "0"), Key: field.key}
		}
	}
	firstLine := s.Strings("first_line")
	if len(firstLine) == 0 {
		return nil, &scraper.MissingKeyError{Index: s.Get("index", "0"), Key: "first_line"}
	}
	if opts.CSVHasHeader != nil && *opts.CSVHasHeader {
		md.Header = firstLine
	} else {
		for i := range firstLine {
			md.Header = append(md.Header, "header"+strconv.Itoa(i+1))
		}
	}
	return md, nil
}

func imageMetadata(s scraper.Stream) (mets.Metadata, error) {
	v, err := requireAll(s, "compression", "colorspace", "width", "height", "bps_value", "bps_unit", "samples_per_pixel")
	if err != nil {
		return nil, err
	}
	return &mets.TechnicalImage{
		Compression:     v["compression"],
		Colorspace:      v["colorspace"],
		Width:           v["width"],
		Height:          v["height"],
		BPSValue:        v["bps_value"],
		BPSUnit:         v["bps_unit"],
		SamplesPerPixel: v["samples_per_pixel"],
		MIMEType:        s.Get("mimetype", ""),
		ByteOrder:       s.Get("byte_order", ""),
		ICCProfileName:  s.Get("icc_profile_name", ""),
	}, nil
}

func audioMetadata(s scraper.Stream) (mets.Metadata, error) {
	v, err := requireAll(s, "codec_quality", "data_rate_mode")
	if err != nil {
		return nil, err
	}
	return &mets.TechnicalAudio{
		AudioDataEncoding:      s.Get("audio_data_encoding", mets.UNAV),
		BitsPerSample:          numeric(s.Get("bits_per_sample", mets.UNAV)),
		CodecCreatorApp:        s.Get("codec_creator_app", mets.UNAV),
		CodecCreatorAppVersion: s.Get("codec_creator_app_version", mets.UNAV),
		CodecName:              s.Get("codec_name", mets.UNAV),
		CodecQuality:           v["codec_quality"],
		DataRate:               numeric(s.Get("data_rate", mets.UNAV)),
		DataRateMode:           v["data_rate_mode"],
		SamplingFrequency:      numeric(s.Get("sampling_frequency", mets.UNAV)),
		Duration:               s.Get("duration", mets.UNAV),
		NumChannels:            s.Get("num_channels", mets.UNAV),
	}, nil
}

func videoMetadata(s scraper.Stream) (mets.Metadata, error) {
	v, err := requireAll(s, "color", "codec_quality", "data_rate_mode", "sound")
	if err != nil {
		return nil, err
	}
	return &mets.TechnicalVideo{
		Duration:               s.Get("duration", mets.UNAV),
		DataRate:               numeric(s.Get("data_rate", mets.UNAV)),
		BitsPerSample:          numeric(s.Get("bits_per_sample", mets.UNAV)),
		Color:                  v["color"],
		CodecCreatorApp:        s.Get("codec_creator_app", mets.UNAV),
		CodecCreatorAppVersion: s.Get("codec_creator_app_version", mets.UNAV),
		CodecName:              s.Get("codec_name", mets.UNAV),
		CodecQuality:           v["codec_quality"],
		DataRateMode:           v["data_rate_mode"],
		FrameRate:              numeric(s.Get("frame_rate", mets.UNAV)),
		PixelsHorizontal:       numeric(s.Get("width", mets.UNAV)),
		PixelsVertical:         numeric(s.Get("height", mets.UNAV)),
		PAR:                    numeric(s.Get("par", mets.UNAV)),
		DAR:                    s.Get("dar", mets.UNAV),
		Sampling:               s.Get("sampling", mets.UNAV),
		SignalFormat:           s.Get("signal_format", mets.UNAV),
		Sound:                  v["sound"],
	}, nil
}
