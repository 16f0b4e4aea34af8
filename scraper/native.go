package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/util"
)

// sampleSize is how much of the head of a file is kept for detection.
const sampleSize = 64 * 1024

// grades maps formats to the grade they receive. Formats not listed are
// accepted at bit level only.
var grades = map[string]string{
	"text/plain":      GradeRecommended,
	"text/csv":        GradeRecommended,
	"text/xml":        GradeRecommended,
	"application/xml": GradeRecommended,
	"application/pdf": GradeRecommended,
	"image/png":       GradeRecommended,
	"image/jpeg":      GradeRecommended,
	"image/tiff":      GradeRecommended,
	"audio/x-wav":     GradeRecommended,
	"image/gif":       GradeAcceptable,
	"audio/mpeg":      GradeAcceptable,
	"text/html":       GradeAcceptable,
	"application/zip": GradeBitLevelWithRecommended,
}

// aliases turns names the detector reports into the names used in results.
var aliases = map[string]string{
	"audio/wav":      "audio/x-wav",
	"audio/wave":     "audio/x-wav",
	"audio/vnd.wave": "audio/x-wav",
}

// Native scrapes files in process. Format identification is done by
// magic numbers, and the extraction covers text, CSV, common raster images
// and WAV audio.
type Native struct {
	Log *zap.Logger
}

// NewNative returns a native scraper logging to log. A nil logger
// disables logging.
func NewNative(log *zap.Logger) *Native {
	if log == nil {
		log = zap.NewNop()
	}
	return &Native{Log: log}
}

// Scrape implements Scraper.
func (n *Native) Scrape(ctx context.Context, path string, opts Options) (*Result, error) {
	log := n.Log
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	probe := &textProbe{}
	hw, err := util.NewHashWriter(probe, util.MD5)
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(hw, contextReader{ctx: ctx, r: f}); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	result := &Result{
		Tool:              "siptools-scraper",
		ToolVersion:       Version,
		Checksum:          hw.Hex(util.MD5),
		ChecksumAlgorithm: util.MD5,
	}
	if opts.MIMEType != "" {
		result.MIMEType = opts.MIMEType
		result.Version = opts.Version
		result.Info = append(result.Info, Component{Class: "PredefinedDetector"})
	} else {
		m := mimetype.Detect(probe.head)
		base, _, _ := strings.Cut(m.String(), ";")
		result.MIMEType = strings.TrimSpace(base)
		if alias, ok := aliases[result.MIMEType]; ok {
			result.MIMEType = alias
		}
		result.Info = append(result.Info, Component{Class: "MagicDetector", Tools: []string{"mimetype"}})
	}
	if result.Version == "" {
		result.Version = formatVersion(result.MIMEType, probe.head)
	}

	stream := Stream{
		"index":       "0",
		"mimetype":    result.MIMEType,
		"version":     result.Version,
		"stream_type": streamType(result.MIMEType),
	}
	result.Streams = []Stream{stream}

	if stream["stream_type"] == "text" {
		charset := opts.Charset
		if charset == "" {
			charset = probe.charset()
		}
		stream["charset"] = charset
		result.Info = append(result.Info, Component{Class: "TextEncodingMetaScraper"})
	}
	switch {
	case result.MIMEType == "text/csv":
		scrapeCSV(stream, probe.head, opts)
		result.Info = append(result.Info, Component{Class: "CsvScraper", Tools: []string{"encoding/csv"}})
	case strings.HasPrefix(result.MIMEType, "image/"):
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		if err := scrapeImage(stream, f, result.MIMEType); err != nil {
			log.Warn("image scraping failed", zap.String("path", path), zap.Error(err))
			markUnavailable(stream, imageKeys)
			break
		}
		result.Info = append(result.Info, Component{Class: "ImageConfigScraper", Tools: []string{"image"}})
	case result.MIMEType == "audio/x-wav":
		if err := scrapeWAV(stream, probe.head); err != nil {
			log.Warn("wav scraping failed", zap.String("path", path), zap.Error(err))
			markUnavailable(stream, audioKeys)
			break
		}
		result.Info = append(result.Info, Component{Class: "WavScraper"})
	case strings.HasPrefix(result.MIMEType, "audio/"):
		markUnavailable(stream, audioKeys)
	}
	result.Info = append(result.Info,
		Component{Class: "MimeMatchScraper"},
		Component{Class: "ResultsMergeScraper"},
	)

	result.Grade = grades[result.MIMEType]
	if result.Grade == "" {
		result.Grade = GradeBitLevel
	}
	log.Debug("scraped",
		zap.String("path", path),
		zap.String("mimetype", result.MIMEType),
		zap.String("version", result.Version),
		zap.String("grade", result.Grade))
	return result, nil
}

func streamType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "text/"), mime == "application/xml":
		return "text"
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	case strings.HasPrefix(mime, "video/"):
		return "videocontainer"
	}
	return "binary"
}

// formatVersion finds the version of well known formats from their header.
func formatVersion(mime string, head []byte) string {
	switch mime {
	case "image/png":
		return "1.2"
	case "image/jpeg":
		if bytes.Contains(head[:min(len(head), 32)], []byte("JFIF")) {
			return "1.01"
		}
		return unav
	case "image/gif":
		if len(head) >= 6 {
			return string(head[3:6])
		}
	case "image/tiff":
		return "6.0"
	case "application/pdf":
		if len(head) >= 8 && bytes.HasPrefix(head, []byte("%PDF-")) {
			return string(head[5:8])
		}
	case "audio/x-wav":
		return unap
	}
	if streamType(mime) == "text" {
		return unap
	}
	return unav
}

// textProbe keeps the head of a stream and checks whether the whole
// stream is valid UTF-8.
type textProbe struct {
	head    []byte
	carry   []byte
	invalid bool
}

func (p *textProbe) Write(b []byte) (int, error) {
	if room := sampleSize - len(p.head); room > 0 {
		p.head = append(p.head, b[:min(room, len(b))]...)
	}
	if p.invalid {
		return len(b), nil
	}
	buf := append(p.carry, b...)
	// hold back an incomplete rune at the end for the next write
	end := len(buf)
	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		c := buf[len(buf)-i]
		if utf8.RuneStart(c) {
			if !utf8.FullRune(buf[len(buf)-i:]) {
				end = len(buf) - i
			}
			break
		}
	}
	if !utf8.Valid(buf[:end]) {
		p.invalid = true
	}
	p.carry = append([]byte(nil), buf[end:]...)
	return len(b), nil
}

func (p *textProbe) charset() string {
	switch {
	case bytes.HasPrefix(p.head, []byte{0xFF, 0xFE, 0, 0}), bytes.HasPrefix(p.head, []byte{0, 0, 0xFE, 0xFF}):
		return "UTF-32"
	case bytes.HasPrefix(p.head, []byte{0xFF, 0xFE}), bytes.HasPrefix(p.head, []byte{0xFE, 0xFF}):
		return "UTF-16"
	case !p.invalid && len(p.carry) == 0:
		return "UTF-8"
	}
	return "ISO-8859-15"
}

// contextReader stops reading once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
