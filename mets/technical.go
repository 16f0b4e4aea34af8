package mets

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ChecksumAlgorithm names a message digest algorithm.
type ChecksumAlgorithm string

const (
	MD5    ChecksumAlgorithm = "MD5"
	SHA1   ChecksumAlgorithm = "SHA-1"
	SHA224 ChecksumAlgorithm = "SHA-224"
	SHA256 ChecksumAlgorithm = "SHA-256"
	SHA384 ChecksumAlgorithm = "SHA-384"
	SHA512 ChecksumAlgorithm = "SHA-512"
)

// ParseChecksumAlgorithm validates s as a checksum algorithm name.
func ParseChecksumAlgorithm(s string) (ChecksumAlgorithm, error) {
	switch a := ChecksumAlgorithm(s); a {
	case MD5, SHA1, SHA224, SHA256, SHA384, SHA512:
		return a, nil
	}
	return "", fmt.Errorf("Invalid checksum algorithm '%s'", s)
}

// Charset is a character encoding of a text file.
type Charset string

const (
	ISO8859_15 Charset = "ISO-8859-15"
	UTF8       Charset = "UTF-8"
	UTF16      Charset = "UTF-16"
	UTF32      Charset = "UTF-32"
)

// ParseCharset validates s as a charset name.
func ParseCharset(s string) (Charset, error) {
	switch c := Charset(s); c {
	case ISO8859_15, UTF8, UTF16, UTF32:
		return c, nil
	}
	return "", fmt.Errorf("Invalid charset '%s'", s)
}

// A Relationship links a PREMIS object to another object.
type Relationship struct {
	Type    string
	Subtype string
	Target  *TechnicalBitstreamObject
}

// TechnicalFileObject is the PREMIS object describing a whole file.
// Identifier fields left empty are filled with a name based UUID when
// written.
type TechnicalFileObject struct {
	FileFormat                 string
	FileFormatVersion          string
	ChecksumAlgorithm          ChecksumAlgorithm
	Checksum                   string
	FileCreatedDate            string
	ObjectIdentifierType       string
	ObjectIdentifier           string
	Charset                    Charset
	OriginalName               string
	FormatRegistryName         string
	FormatRegistryKey          string
	CreatingApplication        string
	CreatingApplicationVersion string

	Relationships []Relationship
}

// AddRelationship links target to this object. It must be called before
// the object is put in a MetadataSet.
func (t *TechnicalFileObject) AddRelationship(target *TechnicalBitstreamObject, typ, subtype string) {
	t.Relationships = append(t.Relationships, Relationship{Type: typ, Subtype: subtype, Target: target})
}

func (t *TechnicalFileObject) MetadataType() MetadataType { return TechnicalMetadata }
func (t *TechnicalFileObject) MetadataFormat() Format     { return FormatPremisObject }
func (t *TechnicalFileObject) IsDescriptive() bool        { return false }

func (t *TechnicalFileObject) Key() string {
	parts := []string{
		t.FileFormat, t.FileFormatVersion,
		string(t.ChecksumAlgorithm), t.Checksum,
		t.FileCreatedDate,
		t.ObjectIdentifierType, t.ObjectIdentifier,
		string(t.Charset), t.OriginalName,
		t.FormatRegistryName, t.FormatRegistryKey,
		t.CreatingApplication, t.CreatingApplicationVersion,
	}
	for _, r := range t.Relationships {
		parts = append(parts, r.Type, r.Subtype, r.Target.Key())
	}
	return keyOf("premis:file", parts...)
}

// Identifier returns the identifier type and value written for the object.
func (t *TechnicalFileObject) Identifier() (string, string) {
	if t.ObjectIdentifier != "" {
		return t.ObjectIdentifierType, t.ObjectIdentifier
	}
	return "UUID", identifierFor(t.Key())
}

// formatName is the PREMIS formatName. Text formats carry their charset
// as a parameter.
func (t *TechnicalFileObject) formatName() string {
	if t.Charset == "" {
		return t.FileFormat
	}
	return t.FileFormat + "; charset=" + string(t.Charset)
}

func (t *TechnicalFileObject) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	idType, id := t.Identifier()
	w.wrap("premis:object", func() {
		writeObjectIdentifier(w, idType, id)
		w.wrap("premis:objectCharacteristics", func() {
			w.text("premis:compositionLevel", "0")
			w.wrap("premis:fixity", func() {
				w.text("premis:messageDigestAlgorithm", string(t.ChecksumAlgorithm))
				w.text("premis:messageDigest", t.Checksum)
			})
			w.wrap("premis:format", func() {
				w.wrap("premis:formatDesignation", func() {
					w.text("premis:formatName", t.formatName())
					if t.FileFormatVersion != UNAP {
						w.optional("premis:formatVersion", t.FileFormatVersion)
					}
				})
				if t.FormatRegistryName != "" {
					w.wrap("premis:formatRegistry", func() {
						w.text("premis:formatRegistryName", t.FormatRegistryName)
						w.text("premis:formatRegistryKey", t.FormatRegistryKey)
					})
				}
			})
			w.wrap("premis:creatingApplication", func() {
				w.optional("premis:creatingApplicationName", t.CreatingApplication)
				w.optional("premis:creatingApplicationVersion", t.CreatingApplicationVersion)
				w.optional("premis:dateCreatedByApplication", t.FileCreatedDate)
			})
		})
		w.optional("premis:originalName", t.OriginalName)
		for _, r := range t.Relationships {
			targetType, target := r.Target.Identifier()
			w.wrap("premis:relationship", func() {
				w.text("premis:relationshipType", r.Type)
				w.text("premis:relationshipSubType", r.Subtype)
				w.wrap("premis:relatedObjectIdentification", func() {
					w.text("premis:relatedObjectIdentifierType", targetType)
					w.text("premis:relatedObjectIdentifierValue", target)
				})
			})
		}
	}, "xsi:type", "premis:file")
	return w.err
}

func writeObjectIdentifier(w *xmlWriter, typ, value string) {
	w.wrap("premis:objectIdentifier", func() {
		w.text("premis:objectIdentifierType", typ)
		w.text("premis:objectIdentifierValue", value)
	})
}

// TechnicalBitstreamObject is the PREMIS object for a stream embedded in a
// container file.
type TechnicalBitstreamObject struct {
	FileFormat           string
	FileFormatVersion    string
	ObjectIdentifierType string
	ObjectIdentifier     string
}

func (t *TechnicalBitstreamObject) MetadataType() MetadataType { return TechnicalMetadata }
func (t *TechnicalBitstreamObject) MetadataFormat() Format     { return FormatPremisObject }
func (t *TechnicalBitstreamObject) IsDescriptive() bool        { return false }

func (t *TechnicalBitstreamObject) Key() string {
	return keyOf("premis:bitstream", t.FileFormat, t.FileFormatVersion, t.ObjectIdentifierType, t.ObjectIdentifier)
}

// Identifier returns the identifier type and value written for the object.
func (t *TechnicalBitstreamObject) Identifier() (string, string) {
	if t.ObjectIdentifier != "" {
		return t.ObjectIdentifierType, t.ObjectIdentifier
	}
	return "UUID", identifierFor(t.Key())
}

func (t *TechnicalBitstreamObject) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	idType, id := t.Identifier()
	w.wrap("premis:object", func() {
		writeObjectIdentifier(w, idType, id)
		w.wrap("premis:objectCharacteristics", func() {
			w.text("premis:compositionLevel", "0")
			w.wrap("premis:format", func() {
				w.wrap("premis:formatDesignation", func() {
					w.text("premis:formatName", t.FileFormat)
					if t.FileFormatVersion != UNAP {
						w.optional("premis:formatVersion", t.FileFormatVersion)
					}
				})
			})
		})
	}, "xsi:type", "premis:bitstream")
	return w.err
}

// TechnicalImage is still image metadata written as MIX.
type TechnicalImage struct {
	Compression     string
	Colorspace      string
	Width           string
	Height          string
	BPSValue        string
	BPSUnit         string
	SamplesPerPixel string
	MIMEType        string
	ByteOrder       string
	ICCProfileName  string
}

func (t *TechnicalImage) MetadataType() MetadataType { return TechnicalMetadata }
func (t *TechnicalImage) MetadataFormat() Format     { return FormatMix }
func (t *TechnicalImage) IsDescriptive() bool        { return false }

func (t *TechnicalImage) Key() string {
	return keyOf("mix", t.Compression, t.Colorspace, t.Width, t.Height, t.BPSValue,
		t.BPSUnit, t.SamplesPerPixel, t.MIMEType, t.ByteOrder, t.ICCProfileName)
}

func (t *TechnicalImage) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	w.wrap("mix:mix", func() {
		w.wrap("mix:BasicDigitalObjectInformation", func() {
			w.optional("mix:byteOrder", t.ByteOrder)
			w.wrap("mix:Compression", func() {
				w.text("mix:compressionScheme", t.Compression)
			})
		})
		w.wrap("mix:BasicImageInformation", func() {
			w.wrap("mix:BasicImageCharacteristics", func() {
				w.text("mix:imageWidth", t.Width)
				w.text("mix:imageHeight", t.Height)
				w.wrap("mix:PhotometricInterpretation", func() {
					w.text("mix:colorSpace", t.Colorspace)
					if t.ICCProfileName != "" {
						w.wrap("mix:ColorProfile", func() {
							w.wrap("mix:IccProfile", func() {
								w.text("mix:iccProfileName", t.ICCProfileName)
							})
						})
					}
				})
			})
		})
		w.wrap("mix:ImageAssessmentMetadata", func() {
			w.wrap("mix:ImageColorEncoding", func() {
				w.wrap("mix:BitsPerSample", func() {
					w.text("mix:bitsPerSampleValue", t.BPSValue)
					w.text("mix:bitsPerSampleUnit", t.BPSUnit)
				})
				w.text("mix:samplesPerPixel", t.SamplesPerPixel)
			})
		})
	})
	return w.err
}

// TechnicalAudio is audio stream metadata written as AudioMD.
type TechnicalAudio struct {
	AudioDataEncoding      string
	BitsPerSample          string
	CodecCreatorApp        string
	CodecCreatorAppVersion string
	CodecName              string
	CodecQuality           string
	DataRate               string
	DataRateMode           string
	SamplingFrequency      string
	Duration               string
	NumChannels            string
}

func (t *TechnicalAudio) MetadataType() MetadataType { return TechnicalMetadata }
func (t *TechnicalAudio) MetadataFormat() Format     { return FormatAudioMD }
func (t *TechnicalAudio) IsDescriptive() bool        { return false }

func (t *TechnicalAudio) Key() string {
	return keyOf("audiomd", t.AudioDataEncoding, t.BitsPerSample, t.CodecCreatorApp,
		t.CodecCreatorAppVersion, t.CodecName, t.CodecQuality, t.DataRate,
		t.DataRateMode, t.SamplingFrequency, t.Duration, t.NumChannels)
}

func (t *TechnicalAudio) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	w.wrap("audiomd:AUDIOMD", func() {
		w.wrap("audiomd:fileData", func() {
			w.text("audiomd:audioDataEncoding", t.AudioDataEncoding)
			w.text("audiomd:bitsPerSample", t.BitsPerSample)
			w.wrap("audiomd:compression", func() {
				w.text("audiomd:codecCreatorApp", t.CodecCreatorApp)
				w.text("audiomd:codecCreatorAppVersion", t.CodecCreatorAppVersion)
				w.text("audiomd:codecName", t.CodecName)
				w.text("audiomd:codecQuality", t.CodecQuality)
			})
			w.text("audiomd:dataRate", t.DataRate)
			w.text("audiomd:dataRateMode", t.DataRateMode)
			w.text("audiomd:samplingFrequency", t.SamplingFrequency)
		})
		w.wrap("audiomd:audioInfo", func() {
			w.text("audiomd:duration", t.Duration)
			w.text("audiomd:numChannels", t.NumChannels)
		})
	}, "ANALOGDIGITALFLAG", "FileDigital")
	return w.err
}

// TechnicalVideo is video stream metadata written as VideoMD.
type TechnicalVideo struct {
	Duration               string
	DataRate               string
	BitsPerSample          string
	Color                  string
	CodecCreatorApp        string
	CodecCreatorAppVersion string
	CodecName              string
	CodecQuality           string
	DataRateMode           string
	FrameRate              string
	PixelsHorizontal       string
	PixelsVertical         string
	PAR                    string
	DAR                    string
	Sampling               string
	SignalFormat           string
	Sound                  string
}

func (t *TechnicalVideo) MetadataType() MetadataType { return TechnicalMetadata }
func (t *TechnicalVideo) MetadataFormat() Format     { return FormatVideoMD }
func (t *TechnicalVideo) IsDescriptive() bool        { return false }

func (t *TechnicalVideo) Key() string {
	return keyOf("videomd", t.Duration, t.DataRate, t.BitsPerSample, t.Color,
		t.CodecCreatorApp, t.CodecCreatorAppVersion, t.CodecName, t.CodecQuality,
		t.DataRateMode, t.FrameRate, t.PixelsHorizontal, t.PixelsVertical,
		t.PAR, t.DAR, t.Sampling, t.SignalFormat, t.Sound)
}

func (t *TechnicalVideo) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	w.wrap("videomd:VIDEOMD", func() {
		w.wrap("videomd:fileData", func() {
			w.text("videomd:duration", t.Duration)
			w.text("videomd:dataRate", t.DataRate)
			w.text("videomd:bitsPerSample", t.BitsPerSample)
			w.text("videomd:color", t.Color)
			w.wrap("videomd:compression", func() {
				w.text("videomd:codecCreatorApp", t.CodecCreatorApp)
				w.text("videomd:codecCreatorAppVersion", t.CodecCreatorAppVersion)
				w.text("videomd:codecName", t.CodecName)
				w.text("videomd:codecQuality", t.CodecQuality)
			})
			w.text("videomd:dataRateMode", t.DataRateMode)
			w.wrap("videomd:frame", func() {
				w.text("videomd:pixelsHorizontal", t.PixelsHorizontal)
				w.text("videomd:pixelsVertical", t.PixelsVertical)
				w.text("videomd:frameRate", t.FrameRate)
				w.text("videomd:PAR", t.PAR)
				w.text("videomd:DAR", t.DAR)
			})
			w.text("videomd:sampling", t.Sampling)
			w.text("videomd:signalFormat", t.SignalFormat)
			w.text("videomd:sound", t.Sound)
		})
	}, "ANALOGDIGITALFLAG", "FileDigital")
	return w.err
}

// TechnicalCSV describes the layout of a delimited text file, written as
// ADDML.
type TechnicalCSV struct {
	Filenames        []string
	Header           []string
	Charset          string
	Delimiter        string
	RecordSeparator  string
	QuotingCharacter string
}

func (t *TechnicalCSV) MetadataType() MetadataType { return TechnicalMetadata }
func (t *TechnicalCSV) MetadataFormat() Format     { return FormatADDML }
func (t *TechnicalCSV) IsDescriptive() bool        { return false }

func (t *TechnicalCSV) Key() string {
	parts := []string{
		t.Charset, t.Delimiter, t.RecordSeparator, t.QuotingCharacter,
		strconv.Itoa(len(t.Filenames)),
	}
	parts = append(parts, t.Filenames...)
	parts = append(parts, strings.Join(t.Header, "\x00"))
	return keyOf("addml", parts...)
}

func (t *TechnicalCSV) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	const definition = "ref001"
	w.wrap("addml:addml", func() {
		w.wrap("addml:dataset", func() {
			w.wrap("addml:flatFiles", func() {
				for _, name := range t.Filenames {
					w.empty("addml:flatFile", "name", name, "definitionReference", definition)
				}
				w.wrap("addml:flatFileDefinitions", func() {
					w.wrap("addml:flatFileDefinition", func() {
						w.wrap("addml:recordDefinitions", func() {
							w.wrap("addml:recordDefinition", func() {
								w.wrap("addml:fieldDefinitions", func() {
									for _, h := range t.Header {
										w.wrap("addml:fieldDefinition", func() {
											w.text("addml:description", "")
										}, "name", h, "typeReference", "String")
									}
								})
							}, "name", "record", "typeReference", "rec")
						})
					}, "name", definition, "typeReference", "ref002")
				})
				w.wrap("addml:structureTypes", func() {
					w.wrap("addml:flatFileTypes", func() {
						w.wrap("addml:flatFileType", func() {
							w.text("addml:charset", t.Charset)
							w.wrap("addml:delimFileFormat", func() {
								w.text("addml:recordSeparator", t.RecordSeparator)
								w.text("addml:fieldSeparatingChar", t.Delimiter)
								w.text("addml:quotingChar", t.QuotingCharacter)
							})
						}, "name", "ref002")
					})
					w.wrap("addml:recordTypes", func() {
						w.text("addml:recordType", "", "name", "rec")
					})
					w.wrap("addml:fieldTypes", func() {
						w.wrap("addml:fieldType", func() {
							w.text("addml:dataType", "string")
						}, "name", "String")
					})
				})
			})
		})
	})
	return w.err
}
