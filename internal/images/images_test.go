package images

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"docmark/internal/docerr"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestSniff_JPEGIffFFD8(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(rt, "data")
		isJPEG := len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
		got := Sniff(data)
		if isJPEG && got != MIMEJPEG {
			rt.Fatalf("expected jpeg for %x", data)
		}
		if !isJPEG && got != MIMEPNG {
			rt.Fatalf("expected png for %x, got %s", data, got)
		}
	})
}

func TestSniff_IgnoresOtherSignatures(t *testing.T) {
	// GIF bytes still default to png; only the JPEG signature is trusted.
	assert.Equal(t, MIMEPNG, Sniff([]byte("GIF89a")))
	assert.Equal(t, MIMEPNG, Sniff(nil))
	assert.Equal(t, MIMEJPEG, Sniff([]byte{0xFF, 0xD8}))
}

func TestResolve_InlineJPEG(t *testing.T) {
	a := NewAsset("image1", jpegHeader)
	ref, err := Resolve(a, Inline())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "data:image/jpeg;base64,"))

	payload := strings.TrimPrefix(ref, "data:image/jpeg;base64,")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, decoded)
}

func TestResolve_DirectoryWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	a := NewAsset("image1", []byte{0x89, 'P', 'N', 'G'})

	ref, err := Resolve(a, Directory(dir))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "media/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(ref, "media/")))
	require.NoError(t, err)
	assert.Equal(t, a.Data, data)
}

func TestResolve_DirectoryFreshNames(t *testing.T) {
	dir := t.TempDir()
	mode := Directory(dir).WithURLPrefix("/assets/")
	a := NewAsset("image1", jpegHeader)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ref, err := Resolve(a, mode)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "/assets/"))
		assert.True(t, strings.HasSuffix(ref, ".jpg"))
		assert.False(t, seen[ref], "name reused: %s", ref)
		seen[ref] = true
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestRefPrefix(t *testing.T) {
	cases := map[string]string{
		"images":     "images/",
		"out/pics/":  "pics/",
		"./assets":   "assets/",
		".":          "",
		"./":         "",
		"":           "",
		"/":          "",
		"/srv/media": "media/",
	}
	for dir, want := range cases {
		assert.Equal(t, want, refPrefix(dir), "dir %q", dir)
	}
}

func TestResolve_CurrentDirectoryBareName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	ref, err := Resolve(NewAsset("image1", jpegHeader), Directory("."))
	require.NoError(t, err)
	assert.NotContains(t, ref, "/")
	assert.True(t, strings.HasSuffix(ref, ".jpg"))
	_, err = os.Stat(filepath.Join(dir, ref))
	assert.NoError(t, err)
}

func TestResolve_DirectoryFailure(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Resolve(NewAsset("image1", jpegHeader), Directory(filepath.Join(blocker, "sub")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerr.ErrIOFailure))
}

func TestCollector_SequentialIDs(t *testing.T) {
	var c Collector
	a := c.Add(jpegHeader)
	b := c.Add([]byte("png-ish"))
	assert.Equal(t, "image1", a.ID)
	assert.Equal(t, "image2", b.ID)
	assert.Equal(t, ".jpg", a.Extension)
	assert.Equal(t, ".png", b.Extension)
	assert.Equal(t, []*Asset{a, b}, c.Assets())
}

func TestMode(t *testing.T) {
	assert.True(t, Inline().IsInline())
	assert.True(t, Mode{}.IsInline())
	m := Directory("out/img")
	assert.False(t, m.IsInline())
	assert.Equal(t, "out/img", m.Dir())
	assert.Equal(t, "dir:out/img", m.String())
}
