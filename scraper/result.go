// Package scraper characterizes files: it identifies their format, computes
// a checksum and extracts format specific technical details for each
// stream in the file.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
)

// Version of the native scraper.
const Version = "1.0.0"

// Grades given to a file format by the preservation service.
const (
	GradeRecommended             = "fi-dpres-recommended-file-format"
	GradeAcceptable              = "fi-dpres-acceptable-file-format"
	GradeBitLevelWithRecommended = "fi-dpres-bit-level-file-format-with-recommended"
	GradeBitLevel                = "fi-dpres-bit-level-file-format"
	GradeUnacceptable            = "fi-dpres-unacceptable-file-format"
	unav                         = "(:unav)"
	unap                         = "(:unap)"
)

// Options carry values known in advance. The scraper reports them instead
// of detecting them.
type Options struct {
	MIMEType  string
	Version   string
	Charset   string
	Delimiter string
	Separator string
	QuoteChar string
}

// A Scraper characterizes the file at path.
type Scraper interface {
	Scrape(ctx context.Context, path string, opts Options) (*Result, error)
}

// A Component is one detector or scraper that took part in producing a
// result, together with the tools it used.
type Component struct {
	Class string
	Tools []string
}

// IsDetector reports whether the component identifies file formats.
func (c Component) IsDetector() bool { return strings.HasSuffix(c.Class, "Detector") }

// IsScraper reports whether the component extracts metadata.
func (c Component) IsScraper() bool { return strings.HasSuffix(c.Class, "Scraper") }

// A Stream holds the extracted values of one stream. Values are either
// strings or string slices.
type Stream map[string]interface{}

// MissingKeyError is returned when a stream lacks a value the caller
// cannot do without.
type MissingKeyError struct {
	Index string
	Key   string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("Scraper result stream %s is missing required key '%s'", e.Index, e.Key)
}

// String returns the string value of key.
func (s Stream) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Get returns the string value of key, or def if there is none.
func (s Stream) Get(key, def string) string {
	if v, ok := s.String(key); ok {
		return v
	}
	return def
}

// Required returns the string value of key or a MissingKeyError.
func (s Stream) Required(key string) (string, error) {
	v, ok := s.String(key)
	if !ok {
		return "", &MissingKeyError{Index: s.Get("index", "?"), Key: key}
	}
	return v, nil
}

// Strings returns the list value of key.
func (s Stream) Strings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	}
	return nil
}

// A Result is the outcome of scraping one file. Streams[0] describes the
// file as a whole; any further streams are embedded in it.
type Result struct {
	Tool              string
	ToolVersion       string
	MIMEType          string
	Version           string
	Checksum          string
	ChecksumAlgorithm string
	Grade             string
	Streams           []Stream
	Info              []Component
}

// MarshalJSON writes the result in the format read by ParseResult. Streams
// and components are objects keyed by their index.
func (r *Result) MarshalJSON() ([]byte, error) {
	streams := make(map[string]Stream)
	for i, s := range r.Streams {
		streams[strconv.Itoa(i)] = s
	}
	info := make(map[string]interface{})
	for i, c := range r.Info {
		tools := c.Tools
		if tools == nil {
			tools = []string{}
		}
		info[strconv.Itoa(i)] = map[string]interface{}{"class": c.Class, "tools": tools}
	}
	return json.Marshal(map[string]interface{}{
		"tool":               r.Tool,
		"tool_version":       r.ToolVersion,
		"mimetype":           r.MIMEType,
		"version":            r.Version,
		"checksum":           r.Checksum,
		"checksum_algorithm": r.ChecksumAlgorithm,
		"grade":              r.Grade,
		"streams":            streams,
		"info":               info,
	})
}

// ParseResult decodes a result written by MarshalJSON or by an external
// characterization tool using the same layout.
func ParseResult(r io.Reader) (*Result, error) {
	obj, err := jason.NewObjectFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding scraper result")
	}
	result := &Result{}
	result.MIMEType, err = obj.GetString("mimetype")
	if err != nil {
		return nil, errors.Wrap(err, "scraper result mimetype")
	}
	result.Tool, _ = obj.GetString("tool")
	result.ToolVersion, _ = obj.GetString("tool_version")
	result.Version, _ = obj.GetString("version")
	result.Checksum, _ = obj.GetString("checksum")
	result.ChecksumAlgorithm, _ = obj.GetString("checksum_algorithm")
	result.Grade, _ = obj.GetString("grade")

	streams, err := obj.GetObject("streams")
	if err != nil {
		return nil, errors.Wrap(err, "scraper result streams")
	}
	for _, key := range indexKeys(streams.Map()) {
		value, _ := streams.GetObject(key)
		s := make(Stream)
		for name, v := range value.Map() {
			s[name] = streamValue(v)
		}
		if _, ok := s["index"]; !ok {
			s["index"] = key
		}
		result.Streams = append(result.Streams, s)
	}
	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("Scraper result has no streams")
	}

	if info, err := obj.GetObject("info"); err == nil {
		for _, key := range indexKeys(info.Map()) {
			value, _ := info.GetObject(key)
			class, _ := value.GetString("class")
			tools, _ := value.GetStringArray("tools")
			result.Info = append(result.Info, Component{Class: class, Tools: tools})
		}
	}
	return result, nil
}

// indexKeys returns the keys of m in numeric order. Keys that are not
// numbers sort after the numeric ones.
func indexKeys(m map[string]*jason.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// streamValue converts a JSON value into a string or a string slice.
func streamValue(v *jason.Value) interface{} {
	if s, err := v.String(); err == nil {
		return s
	}
	if arr, err := v.Array(); err == nil {
		list := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := streamValue(item).(string); ok {
				list = append(list, s)
			}
		}
		return list
	}
	if n, err := v.Number(); err == nil {
		return n.String()
	}
	if b, err := v.Boolean(); err == nil {
		return strconv.FormatBool(b)
	}
	if v.Null() == nil {
		return ""
	}
	data, _ := v.Marshal()
	return string(data)
}

// LoadResult reads a result previously stored with SaveResult.
func LoadResult(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseResult(f)
}

// SaveResult stores r as JSON at path.
func SaveResult(path string, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
