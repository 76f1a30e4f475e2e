// Package images sniffs, collects and places the raster images extracted
// from documents. An image is either inlined as a data URI or written to a
// caller supplied directory under a random name.
package images

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"docmark/internal/docerr"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// Asset is one extracted image. MIMEType is always derived from the bytes,
// never from container metadata. Reference is empty until Resolve succeeds.
type Asset struct {
	ID        string
	Data      []byte
	MIMEType  string
	Extension string
	Reference string
}

// Sniff returns image/jpeg when data starts with FF D8 and image/png
// otherwise.
func Sniff(data []byte) string {
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8 {
		return MIMEJPEG
	}
	return MIMEPNG
}

// ExtensionFor returns the file extension used for a sniffed MIME type.
func ExtensionFor(mime string) string {
	if mime == MIMEJPEG {
		return ".jpg"
	}
	return ".png"
}

// NewAsset sniffs data and builds an asset with the given id.
func NewAsset(id string, data []byte) *Asset {
	mime := Sniff(data)
	return &Asset{
		ID:        id,
		Data:      data,
		MIMEType:  mime,
		Extension: ExtensionFor(mime),
	}
}

// Collector hands out sequential asset ids for one conversion.
type Collector struct {
	assets []*Asset
}

// Add records data as a new asset and returns it.
func (c *Collector) Add(data []byte) *Asset {
	a := NewAsset("image"+strconv.Itoa(len(c.assets)+1), data)
	c.assets = append(c.assets, a)
	return a
}

// Assets returns the collected assets in extraction order.
func (c *Collector) Assets() []*Asset {
	return c.assets
}

// Mode selects where images go. The zero value is Inline.
type Mode struct {
	dir       string
	urlPrefix string
}

// Inline embeds every image as a base64 data URI.
func Inline() Mode { return Mode{} }

// Directory writes every image under dir. The returned reference is
// base(dir)/<name> unless a URL prefix is set.
func Directory(dir string) Mode { return Mode{dir: dir} }

// WithURLPrefix returns a copy of m whose references start with prefix.
func (m Mode) WithURLPrefix(prefix string) Mode {
	m.urlPrefix = prefix
	return m
}

// IsInline reports whether images are embedded as data URIs.
func (m Mode) IsInline() bool { return m.dir == "" }

// Dir is the target directory, empty for Inline.
func (m Mode) Dir() string { return m.dir }

func (m Mode) String() string {
	if m.IsInline() {
		return "inline"
	}
	return "dir:" + m.dir
}

// DataURI returns the inline representation of a.
func DataURI(a *Asset) string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Resolve places a according to mode and returns the reference string to
// use in Markdown. In directory mode every call writes a new file with a
// fresh random name; identical images are not deduplicated.
func Resolve(a *Asset, mode Mode) (string, error) {
	if mode.IsInline() {
		return DataURI(a), nil
	}
	if err := os.MkdirAll(mode.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", docerr.ErrIOFailure, mode.dir, err)
	}
	name := randomName() + a.Extension
	if err := os.WriteFile(filepath.Join(mode.dir, name), a.Data, 0644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", docerr.ErrIOFailure, name, err)
	}
	prefix := mode.urlPrefix
	if prefix == "" {
		prefix = refPrefix(mode.dir)
	}
	return prefix + name, nil
}

// refPrefix is the default reference prefix for images written to dir: its
// base name and a slash, or nothing when dir is the current directory or a
// filesystem root.
func refPrefix(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || strings.Trim(base, `/\`) == "" {
		return ""
	}
	return base + "/"
}

// randomName returns 32 hex characters from a random UUID.
func randomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
