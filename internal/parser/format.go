package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"docmark/internal/doc2md"
)

// Format identifies a conversion pipeline.
type Format int

const (
	// Unknown asks the dispatcher to sniff the format.
	Unknown Format = iota
	// LegacyBinary is a compound-file word processor document (.doc).
	LegacyBinary
	// StructuredPackage is an Office Open XML document (.docx).
	StructuredPackage
	PDF
)

func (f Format) String() string {
	switch f {
	case LegacyBinary:
		return "doc"
	case StructuredPackage:
		return "docx"
	case PDF:
		return "pdf"
	}
	return "unknown"
}

// MarshalText writes the short name used by ParseFormat.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts any name ParseFormat accepts.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFormat maps a format name to a Format. Names are case-insensitive;
// "word" and "word_legacy" are accepted as aliases for docx and doc. An
// empty name or "auto" yields Unknown.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "unknown":
		return Unknown, nil
	case "doc", "word_legacy":
		return LegacyBinary, nil
	case "docx", "word":
		return StructuredPackage, nil
	case "pdf":
		return PDF, nil
	}
	return Unknown, fmt.Errorf("unsupported format: %s", name)
}

const documentPart = "word/document.xml"

var pdfMagic = []byte("%PDF-")

// DetectFormat identifies data by its leading bytes and falls back to the
// file extension of filename.
func DetectFormat(data []byte, filename string) Format {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return PDF
	case bytes.HasPrefix(data, doc2md.TextMarker):
		return LegacyBinary
	case isWordPackage(data):
		return StructuredPackage
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDF
	case ".doc", ".dot":
		return LegacyBinary
	case ".docx", ".docm", ".dotx", ".dotm":
		return StructuredPackage
	}
	return Unknown
}

func isWordPackage(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == documentPart {
			return true
		}
	}
	return false
}
