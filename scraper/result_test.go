package scraper

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const videoResult = `{
  "tool": "file-scraper",
  "tool_version": "0.70",
  "mimetype": "video/mp4",
  "version": "(:unap)",
  "checksum": "abc",
  "checksum_algorithm": "MD5",
  "grade": "fi-dpres-recommended-file-format",
  "streams": {
    "0": {"mimetype": "video/mp4", "version": "(:unap)", "stream_type": "videocontainer"},
    "2": {"mimetype": "audio/aac", "version": "(:unav)", "stream_type": "audio", "num_channels": 2},
    "10": {"mimetype": "text/plain", "version": "(:unap)", "stream_type": "text", "first_line": ["a", "b"]},
    "1": {"mimetype": "video/h264", "version": "(:unav)", "stream_type": "video", "sound": "Yes"}
  },
  "info": {
    "1": {"class": "FFMpegScraper", "tools": ["ffmpeg-4.4"]},
    "0": {"class": "MagicDetector", "tools": []}
  }
}`

func TestParseResult(t *testing.T) {
	r, err := ParseResult(strings.NewReader(videoResult))
	require.NoError(t, err)
	assert.Equal(t, "file-scraper", r.Tool)
	assert.Equal(t, "video/mp4", r.MIMEType)
	require.Len(t, r.Streams, 4)
	// streams are ordered by their numeric index
	assert.Equal(t, "videocontainer", r.Streams[0].Get("stream_type", ""))
	assert.Equal(t, "video/h264", r.Streams[1].Get("mimetype", ""))
	assert.Equal(t, "audio/aac", r.Streams[2].Get("mimetype", ""))
	assert.Equal(t, "2", r.Streams[2].Get("num_channels", ""))
	assert.Equal(t, "10", r.Streams[3].Get("index", ""))
	assert.Equal(t, []string{"a", "b"}, r.Streams[3].Strings("first_line"))

	require.Len(t, r.Info, 2)
	assert.Equal(t, "MagicDetector", r.Info[0].Class)
	assert.True(t, r.Info[0].IsDetector())
	assert.Equal(t, []string{"ffmpeg-4.4"}, r.Info[1].Tools)
	assert.True(t, r.Info[1].IsScraper())
}

func TestParseResultScalars(t *testing.T) {
	const input = `{
  "mimetype": "audio/x-wav",
  "streams": {"0": {
    "mimetype": "audio/x-wav",
    "num_channels": 2,
    "sampling_frequency": 44.1,
    "lossy": false,
    "looped": true,
    "codec_name": null,
    "first_line": ["a", 1, true]
  }}
}`
	r, err := ParseResult(strings.NewReader(input))
	require.NoError(t, err)
	s := r.Streams[0]
	var tests = []struct {
		key, value string
	}{
		{"num_channels", "2"},
		{"sampling_frequency", "44.1"},
		{"lossy", "false"},
		{"looped", "true"},
		{"codec_name", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.value, s.Get(test.key, "missing"), test.key)
	}
	assert.Equal(t, []string{"a", "1", "true"}, s.Strings("first_line"))
}

func TestParseResultErrors(t *testing.T) {
	var table = []string{
		`not json`,
		`{"streams": {"0": {}}}`,
		`{"mimetype": "text/plain", "streams": {}}`,
		`{"mimetype": "text/plain"}`,
	}
	for _, input := range table {
		_, err := ParseResult(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}

func TestStreamRequired(t *testing.T) {
	s := Stream{"index": "3", "width": "10"}
	v, err := s.Required("width")
	require.NoError(t, err)
	assert.Equal(t, "10", v)
	_, err = s.Required("height")
	assert.EqualError(t, err, "Scraper result stream 3 is missing required key 'height'")
}

func TestSaveLoadResult(t *testing.T) {
	r, err := ParseResult(strings.NewReader(videoResult))
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, SaveResult(p, r))
	loaded, err := LoadResult(p)
	require.NoError(t, err)
	assert.Equal(t, r, loaded)
}
