package scraper

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// delimiters are tried in this order when sniffing a CSV dialect.
var delimiters = []string{",", ";", "\t", "|"}

// scrapeCSV records the dialect and the first record of a delimited text
// file. Values given in opts are reported as is.
func scrapeCSV(s Stream, head []byte, opts Options) {
	firstLine := head
	if i := bytes.IndexAny(head, "\r\n"); i >= 0 {
		firstLine = head[:i]
	}
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = ","
		best := 0
		for _, d := range delimiters {
			if n := bytes.Count(firstLine, []byte(d)); n > best {
				delimiter, best = d, n
			}
		}
	}
	separator := opts.Separator
	if separator == "" {
		switch {
		case bytes.Contains(head, []byte("\r\n")):
			separator = "CR+LF"
		case bytes.Contains(head, []byte("\r")):
			separator = "CR"
		default:
			separator = "LF"
		}
	}
	quote := opts.QuoteChar
	if quote == "" {
		quote = `"`
	}
	s["delimiter"] = delimiter
	s["separator"] = separator
	s["quotechar"] = quote
	s["first_line"] = firstRecord(head, delimiter)
}

// firstRecord parses the first record of head. Multi character
// delimiters are split on literally.
func firstRecord(head []byte, delimiter string) []string {
	if utf8.RuneCountInString(delimiter) == 1 {
		r := csv.NewReader(bytes.NewReader(head))
		r.Comma, _ = utf8.DecodeRuneInString(delimiter)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		if record, err := r.Read(); err == nil {
			return record
		}
	}
	line := string(head)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return strings.Split(line, delimiter)
}

var compressions = map[string]string{
	"image/png":  "deflate",
	"image/jpeg": "jpeg",
	"image/gif":  "lzw",
	"image/bmp":  "uncompressed",
}

// imageKeys and audioKeys are the stream keys extraction reports for the
// image and audio stream types.
var (
	imageKeys = []string{
		"width", "height", "colorspace", "samples_per_pixel", "bps_value",
		"bps_unit", "compression", "byte_order", "icc_profile_name",
	}
	audioKeys = []string{
		"audio_data_encoding", "bits_per_sample", "codec_creator_app",
		"codec_creator_app_version", "codec_name", "codec_quality",
		"data_rate", "data_rate_mode", "sampling_frequency", "duration",
		"num_channels",
	}
)

// markUnavailable sets every key not already present in s to the
// unavailable placeholder.
func markUnavailable(s Stream, keys []string) {
	for _, k := range keys {
		if _, ok := s[k]; !ok {
			s[k] = unav
		}
	}
}

// scrapeImage decodes the image header from r.
func scrapeImage(s Stream, r io.Reader, mime string) error {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return err
	}
	colorspace, samples, bits := "rgb", "3", "8"
	switch cfg.ColorModel {
	case color.GrayModel:
		colorspace, samples = "grayscale", "1"
	case color.Gray16Model:
		colorspace, samples, bits = "grayscale", "1", "16"
	case color.NRGBAModel:
		samples = "4"
	case color.RGBA64Model:
		bits = "16"
	case color.NRGBA64Model:
		samples, bits = "4", "16"
	case color.YCbCrModel:
		colorspace = "ycbcr"
	case color.CMYKModel:
		colorspace, samples = "cmyk", "4"
	default:
		if _, ok := cfg.ColorModel.(color.Palette); ok {
			samples = "1"
		}
	}
	compression := compressions[mime]
	if compression == "" {
		compression = unav
	}
	s["width"] = strconv.Itoa(cfg.Width)
	s["height"] = strconv.Itoa(cfg.Height)
	s["colorspace"] = colorspace
	s["samples_per_pixel"] = samples
	s["bps_value"] = bits
	s["bps_unit"] = "integer"
	s["compression"] = compression
	s["byte_order"] = unav
	s["icc_profile_name"] = unav
	return nil
}

// scrapeWAV reads the fmt and data chunks of a RIFF WAVE header.
func scrapeWAV(s Stream, head []byte) error {
	if len(head) < 12 || string(head[0:4]) != "RIFF" || string(head[8:12]) != "WAVE" {
		return fmt.Errorf("not a RIFF WAVE file")
	}
	var (
		format, channels, bitsPerSample uint16
		sampleRate, byteRate, dataSize  uint32
		haveFmt, haveData               bool
	)
	pos := 12
	for pos+8 <= len(head) && !(haveFmt && haveData) {
		id := string(head[pos : pos+4])
		size := binary.LittleEndian.Uint32(head[pos+4 : pos+8])
		body := head[pos+8:]
		switch id {
		case "fmt ":
			if len(body) < 16 {
				return fmt.Errorf("short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			byteRate = binary.LittleEndian.Uint32(body[8:12])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			dataSize = size
			haveData = true
		}
		pos += 8 + int(size) + int(size%2)
	}
	if !haveFmt {
		return fmt.Errorf("no fmt chunk")
	}
	encoding, quality := "PCM", "lossless"
	if format != 1 {
		encoding, quality = unav, unav
	}
	duration := unav
	if haveData && byteRate > 0 {
		duration = isoDuration(float64(dataSize) / float64(byteRate))
	}
	s["audio_data_encoding"] = encoding
	s["bits_per_sample"] = strconv.Itoa(int(bitsPerSample))
	s["codec_creator_app"] = unav
	s["codec_creator_app_version"] = unav
	s["codec_name"] = encoding
	s["codec_quality"] = quality
	s["data_rate"] = strconv.FormatFloat(float64(byteRate)*8/1000, 'f', -1, 64)
	s["data_rate_mode"] = "Fixed"
	s["sampling_frequency"] = strconv.FormatFloat(float64(sampleRate)/1000, 'f', -1, 64)
	s["duration"] = duration
	s["num_channels"] = strconv.Itoa(int(channels))
	return nil
}

// isoDuration formats seconds as an ISO 8601 duration.
func isoDuration(seconds float64) string {
	return "PT" + strconv.FormatFloat(seconds, 'f', -1, 64) + "S"
}
