package errlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetGlobal closes any logger left by a previous test.
func resetGlobal() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.close()
		global = nil
	}
}

func initTemp(t *testing.T) string {
	t.Helper()
	resetGlobal()
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Init(dir))
	t.Cleanup(resetGlobal)
	return dir
}

func TestInitAndLogf(t *testing.T) {
	dir := initTemp(t)
	assert.True(t, Enabled())
	assert.Equal(t, dir, Dir())

	Logf("[Convert] %s failed: %d", "pdf", 42)

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] [Convert] pdf failed: 42\n")
}

func TestInitTwiceKeepsFirstDir(t *testing.T) {
	dir := initTemp(t)
	require.NoError(t, Init(t.TempDir()))
	assert.Equal(t, dir, Dir())
}

func TestRotation(t *testing.T) {
	dir := initTemp(t)

	mu.Lock()
	global.rotateSize = 64
	mu.Unlock()

	Logf("this message triggers rotation because it is longer than the limit")

	archives, err := ListArchives()
	require.NoError(t, err)
	require.Len(t, archives, 1)

	gf, err := os.Open(filepath.Join(dir, archives[0]))
	require.NoError(t, err)
	defer gf.Close()
	gr, err := gzip.NewReader(gf)
	require.NoError(t, err)
	defer gr.Close()
	content, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Contains(t, string(content), "triggers rotation")

	info, err := os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestPruneArchives(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < maxBackups+3; i++ {
		name := fmt.Sprintf("error-20260101-00000%d.log.gz", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake"), 0644))
	}

	l := &errorLogger{dir: dir}
	l.pruneArchives()

	archives, err := archivesIn(dir)
	require.NoError(t, err)
	assert.Len(t, archives, maxBackups)
	assert.Equal(t, "error-20260101-000003.log.gz", archives[0])
}

func TestRecentLines(t *testing.T) {
	initTemp(t)
	for i := 1; i <= 5; i++ {
		Logf("line %d", i)
	}
	lines, err := RecentLines(2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "line 4"))
	assert.True(t, strings.HasSuffix(lines[1], "line 5"))
}

func TestLogfBeforeInit(t *testing.T) {
	resetGlobal()
	assert.False(t, Enabled())
	assert.NotPanics(t, func() { Logf("ignored") })
}

func TestCloseIdempotent(t *testing.T) {
	resetGlobal()
	assert.NotPanics(t, func() {
		Close()
		Close()
	})
}
