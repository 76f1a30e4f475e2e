// Package errlog records conversion failures and degraded conversions in a
// dedicated file, separate from the console log.
//
// The file is rotated once it grows past the rotation threshold; rotated
// content is gzip-compressed into error-<timestamp>.log.gz and only the
// newest maxBackups archives are kept. All operations are safe for
// concurrent use.
package errlog

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogDir = "/var/log/docmark"
	windowsLogDir = "logs"
	logFileName   = "error.log"

	// defaultRotateSize is the rotation threshold in bytes (10 MB).
	defaultRotateSize = 10 << 20
	maxBackups        = 5
	writeBufSize      = 4096
)

var (
	global *errorLogger
	mu     sync.Mutex // guards global
)

type errorLogger struct {
	mu         sync.Mutex
	file       *os.File
	dir        string
	path       string
	size       int64
	buf        []byte
	closed     bool
	rotateSize int64
}

// DefaultDir is the log directory used when Init is given an empty path.
func DefaultDir() string {
	if runtime.GOOS == "windows" {
		return windowsLogDir
	}
	return defaultLogDir
}

// Init opens dir/error.log for appending, creating dir when needed. An
// empty dir means DefaultDir. Calling Init while a logger is open is a
// no-op; after a failed Init the next call retries.
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil
	}
	if dir == "" {
		dir = DefaultDir()
	}
	l, err := open(dir)
	if err != nil {
		return err
	}
	global = l
	return nil
}

func open(dir string) (*errorLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create error log directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open error log file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat error log file: %w", err)
	}
	return &errorLogger{
		file:       f,
		dir:        dir,
		path:       path,
		size:       info.Size(),
		buf:        make([]byte, 0, writeBufSize),
		rotateSize: defaultRotateSize,
	}, nil
}

// Enabled reports whether Init has succeeded and Close has not been called.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return global != nil
}

// Logf appends one timestamped line. It does nothing before Init.
func Logf(format string, args ...any) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		return
	}
	l.logf(format, args...)
}

// Close syncs and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		return
	}
	global.close()
	global = nil
}

// SetRotationSizeMB changes the rotation threshold of the open logger.
// Values below 1 are raised to 1.
func SetRotationSizeMB(sizeMB int) {
	if sizeMB < 1 {
		sizeMB = 1
	}
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.mu.Lock()
		global.rotateSize = int64(sizeMB) << 20
		global.mu.Unlock()
	}
}

// Dir returns the directory of the open logger, or DefaultDir.
func Dir() string {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return global.dir
	}
	return DefaultDir()
}

func (l *errorLogger) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.file == nil {
		return
	}

	// 2006/01/02 15:04:05 [ERROR] message
	l.buf = l.buf[:0]
	l.buf = time.Now().AppendFormat(l.buf, "2006/01/02 15:04:05")
	l.buf = append(l.buf, " [ERROR] "...)
	l.buf = fmt.Appendf(l.buf, format, args...)
	if l.buf[len(l.buf)-1] != '\n' {
		l.buf = append(l.buf, '\n')
	}

	n, err := l.file.Write(l.buf)
	if err != nil {
		return
	}
	l.size += int64(n)
	if l.size >= l.rotateSize {
		l.rotate()
	}
}

// rotate compresses the current file into an archive and starts a new one.
// Caller holds l.mu.
func (l *errorLogger) rotate() {
	l.file.Sync()
	l.file.Close()
	l.file = nil

	archive := filepath.Join(l.dir, "error-"+time.Now().Format("20060102-150405")+".log.gz")
	if err := compressFile(l.path, archive); err != nil {
		fmt.Fprintf(os.Stderr, "errlog: compress %s: %v\n", l.path, err)
	}
	// Truncate either way so a failing compressor cannot grow the file
	// without bound.
	os.Truncate(l.path, 0)
	l.pruneArchives()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	l.file = f
	l.size = 0
}

// pruneArchives keeps the newest maxBackups archives. Caller holds l.mu.
func (l *errorLogger) pruneArchives() {
	archives, err := archivesIn(l.dir)
	if err != nil || len(archives) <= maxBackups {
		return
	}
	for _, name := range archives[:len(archives)-maxBackups] {
		os.Remove(filepath.Join(l.dir, name))
	}
}

func (l *errorLogger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.file != nil {
		l.file.Sync()
		l.file.Close()
		l.file = nil
	}
}

// compressFile gzips src into dst. A partial dst is removed on failure.
func compressFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	gw, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		return err
	}
	if _, err = io.Copy(gw, in); err != nil {
		gw.Close()
		return err
	}
	if err = gw.Close(); err != nil {
		return err
	}
	return out.Close()
}

// archivesIn lists error-*.log.gz files in dir, oldest first.
func archivesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "error-") && strings.HasSuffix(name, ".log.gz") {
			archives = append(archives, name)
		}
	}
	sort.Strings(archives)
	return archives, nil
}

// RecentLines returns up to n of the last lines of the current log file,
// oldest first. Only the final 256 KB of the file are examined.
func RecentLines(n int) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	f, err := os.Open(filepath.Join(Dir(), logFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	const maxRead = 256 << 10
	start := info.Size() - maxRead
	if start < 0 {
		start = 0
	}
	buf := make([]byte, info.Size()-start)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return nil, err
	}

	all := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	lines := make([]string, 0, n)
	for _, line := range all {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// ListArchives returns the compressed archives of the log directory,
// oldest first.
func ListArchives() ([]string, error) {
	archives, err := archivesIn(Dir())
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	return archives, err
}
