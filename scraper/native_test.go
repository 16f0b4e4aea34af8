package scraper

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func classes(r *Result) []string {
	var result []string
	for _, c := range r.Info {
		result = append(result, c.Class)
	}
	return result
}

func TestNativeText(t *testing.T) {
	p := writeFile(t, "text.txt", []byte("hello world\n"))
	r, err := NewNative(nil).Scrape(context.Background(), p, Options{})
	require.NoError(t, err)

	assert.Equal(t, "text/plain", r.MIMEType)
	assert.Equal(t, unap, r.Version)
	assert.Equal(t, "MD5", r.ChecksumAlgorithm)
	assert.Equal(t, "6f5902ac237024bdd0c176cb93063dc4", r.Checksum)
	assert.Equal(t, GradeRecommended, r.Grade)
	require.Len(t, r.Streams, 1)
	assert.Equal(t, "UTF-8", r.Streams[0].Get("charset", ""))
	assert.Equal(t, "text", r.Streams[0].Get("stream_type", ""))
	assert.Equal(t, []string{"MagicDetector", "TextEncodingMetaScraper", "MimeMatchScraper", "ResultsMergeScraper"}, classes(r))
}

func TestNativeLatin1(t *testing.T) {
	p := writeFile(t, "latin.txt", []byte("caf\xe9 au lait\n"))
	r, err := NewNative(nil).Scrape(context.Background(), p, Options{MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "ISO-8859-15", r.Streams[0].Get("charset", ""))
	assert.Equal(t, "PredefinedDetector", r.Info[0].Class)
}

func TestNativeCSV(t *testing.T) {
	const data = "year,brand,model\r\n1997,Ford,E350\r\n2000,Mercury,Cougar\r\n"
	p := writeFile(t, "table.csv", []byte(data))

	r, err := NewNative(nil).Scrape(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", r.MIMEType)
	s := r.Streams[0]
	assert.Equal(t, ",", s.Get("delimiter", ""))
	assert.Equal(t, "CR+LF", s.Get("separator", ""))
	assert.Equal(t, `"`, s.Get("quotechar", ""))
	assert.Equal(t, []string{"year", "brand", "model"}, s.Strings("first_line"))
	assert.Contains(t, classes(r), "CsvScraper")

	// predefined dialect is reported as given
	r, err = NewNative(nil).Scrape(context.Background(), p, Options{
		MIMEType:  "text/csv",
		Version:   unap,
		Charset:   "ISO-8859-15",
		Delimiter: ";",
		Separator: "CR+LF",
		QuoteChar: "'",
	})
	require.NoError(t, err)
	s = r.Streams[0]
	assert.Equal(t, ";", s.Get("delimiter", ""))
	assert.Equal(t, "'", s.Get("quotechar", ""))
	assert.Equal(t, "ISO-8859-15", s.Get("charset", ""))
	assert.Equal(t, []string{"year,brand,model"}, s.Strings("first_line"))
}

func TestNativePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))))
	p := writeFile(t, "image.png", buf.Bytes())

	r, err := NewNative(nil).Scrape(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.MIMEType)
	assert.Equal(t, "1.2", r.Version)
	s := r.Streams[0]
	assert.Equal(t, "3", s.Get("width", ""))
	assert.Equal(t, "2", s.Get("height", ""))
	assert.Equal(t, "grayscale", s.Get("colorspace", ""))
	assert.Equal(t, "1", s.Get("samples_per_pixel", ""))
	assert.Equal(t, "deflate", s.Get("compression", ""))
	assert.Contains(t, classes(r), "ImageConfigScraper")
}

func wavHeader() []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	binary.Write(&buf, le, uint32(36+8))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, le, uint32(16))
	binary.Write(&buf, le, uint16(1))      // PCM
	binary.Write(&buf, le, uint16(2))      // channels
	binary.Write(&buf, le, uint32(44100))  // sample rate
	binary.Write(&buf, le, uint32(176400)) // byte rate
	binary.Write(&buf, le, uint16(4))      // block align
	binary.Write(&buf, le, uint16(16))     // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, le, uint32(176400))
	buf.Write(make([]byte, 64))
	return buf.Bytes()
}

func TestNativeWAV(t *testing.T) {
	p := writeFile(t, "sound.wav", wavHeader())
	r, err := NewNative(nil).Scrape(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "audio/x-wav", r.MIMEType)
	s := r.Streams[0]
	assert.Equal(t, "PCM", s.Get("audio_data_encoding", ""))
	assert.Equal(t, "16", s.Get("bits_per_sample", ""))
	assert.Equal(t, "2", s.Get("num_channels", ""))
	assert.Equal(t, "44.1", s.Get("sampling_frequency", ""))
	assert.Equal(t, "1411.2", s.Get("data_rate", ""))
	assert.Equal(t, "PT1S", s.Get("duration", ""))
	assert.Equal(t, "lossless", s.Get("codec_quality", ""))
}

func TestNativeTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 5)), nil))
	p := writeFile(t, "image.tif", buf.Bytes())

	r, err := NewNative(nil).Scrape(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "image/tiff", r.MIMEType)
	assert.Equal(t, GradeRecommended, r.Grade)
	s := r.Streams[0]
	assert.Equal(t, "4", s.Get("width", ""))
	assert.Equal(t, "5", s.Get("height", ""))
	assert.Equal(t, "grayscale", s.Get("colorspace", ""))
	assert.Equal(t, unav, s.Get("compression", ""))
	assert.Contains(t, classes(r), "ImageConfigScraper")
}

func TestNativeUnreadableMedia(t *testing.T) {
	var tests = []struct {
		name, file string
		data       []byte
		mime       string
		keys       []string
	}{
		{"truncated tiff", "broken.tif", []byte("II*\x00\x08\x00\x00\x00"), "image/tiff", imageKeys},
		{"mp3", "song.mp3", append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 32)...), "audio/mpeg", audioKeys},
		{"truncated wav", "broken.wav", []byte("RIFF\x08\x00\x00\x00WAVEjunk"), "audio/x-wav", audioKeys},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := writeFile(t, test.file, test.data)
			r, err := NewNative(nil).Scrape(context.Background(), p, Options{})
			require.NoError(t, err)
			assert.Equal(t, test.mime, r.MIMEType)
			s := r.Streams[0]
			for _, k := range test.keys {
				assert.Equal(t, unav, s.Get(k, ""), k)
			}
		})
	}
}

func TestNativeErrors(t *testing.T) {
	_, err := NewNative(nil).Scrape(context.Background(), t.TempDir(), Options{})
	assert.Error(t, err)

	p := writeFile(t, "text.txt", []byte("hello"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewNative(nil).Scrape(ctx, p, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextProbeSplitRune(t *testing.T) {
	p := &textProbe{}
	euro := []byte("€") // three bytes
	p.Write([]byte{'a', euro[0]})
	p.Write(euro[1:])
	assert.Equal(t, "UTF-8", p.charset())

	p = &textProbe{}
	p.Write([]byte{'a', euro[0]})
	assert.Equal(t, "ISO-8859-15", p.charset())
}
