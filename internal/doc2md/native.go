package doc2md

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"docmark/internal/docerr"
	"docmark/internal/markdown"
)

// DefaultNativeTimeout bounds one office conversion.
const DefaultNativeTimeout = 60 * time.Second

// nativeWaitDelay is how long output pipes may stay open after the office
// process is killed.
const nativeWaitDelay = 2 * time.Second

// NativeAutomation converts through a locally installed LibreOffice in
// headless mode. It is available only when a binary is configured or can
// be found on this host.
type NativeAutomation struct {
	// Binary is the soffice path. Empty means look it up.
	Binary string
	// Timeout bounds the external process. Zero uses DefaultNativeTimeout.
	Timeout time.Duration
	// Disabled turns the tier off regardless of what is installed.
	Disabled bool
}

func (n *NativeAutomation) Name() string { return "native" }

func (n *NativeAutomation) binary() string {
	if n.Binary != "" {
		if info, err := os.Stat(n.Binary); err == nil && !info.IsDir() {
			return n.Binary
		}
		return ""
	}
	return findOffice()
}

// Available reports docerr.ErrNativeAutomationUnavailable when the tier is
// disabled or no office binary exists.
func (n *NativeAutomation) Available() error {
	if n.Disabled {
		return fmt.Errorf("%w: disabled", docerr.ErrNativeAutomationUnavailable)
	}
	if n.binary() == "" {
		if n.Binary != "" {
			return fmt.Errorf("%w: %s not found", docerr.ErrNativeAutomationUnavailable, n.Binary)
		}
		return fmt.Errorf("%w: no office binary on this host", docerr.ErrNativeAutomationUnavailable)
	}
	return nil
}

// Extract writes data to a private temp directory, converts it to plain
// text and reads the result back. The temp directory is removed on every
// return path.
func (n *NativeAutomation) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	bin := n.binary()
	if bin == "" {
		return nil, docerr.ErrNativeAutomationUnavailable
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultNativeTimeout
	}

	dir, err := os.MkdirTemp("", "docmark-native-")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", docerr.ErrIOFailure, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.doc")
	if err := os.WriteFile(in, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: write temp file: %v", docerr.ErrIOFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A private profile keeps concurrent conversions from sharing a lock.
	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(dir, "profile"))
	cmd := exec.CommandContext(ctx, bin,
		profile,
		"--headless",
		"--norestore",
		"--convert-to", "txt:Text (encoded):UTF8",
		"--outdir", dir,
		in,
	)
	isolateProcess(cmd)
	cmd.WaitDelay = nativeWaitDelay
	start := time.Now()
	if output, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("office conversion timed out after %s", timeout)
		}
		return nil, fmt.Errorf("office conversion failed: %s: %w", strings.TrimSpace(string(output)), err)
	}
	log.Printf("[DOC] native conversion finished in %s", time.Since(start).Round(time.Millisecond))

	raw, err := os.ReadFile(filepath.Join(dir, "input.txt"))
	if err != nil {
		return nil, fmt.Errorf("%w: read converted text: %v", docerr.ErrIOFailure, err)
	}
	text, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		text = raw
	}
	return &Extraction{Blocks: textParagraphs(string(text))}, nil
}

// textParagraphs turns office plain-text output, one paragraph per line,
// into Paragraph blocks.
func textParagraphs(text string) []markdown.Block {
	var blocks []markdown.Block
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			blocks = append(blocks, markdown.Paragraph{Text: line})
		}
	}
	return blocks
}

// findOffice returns the first office binary found on this host.
func findOffice() string {
	for _, name := range officeCommands {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	for _, p := range officeInstallPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
