// Package doc2md converts legacy binary word-processor documents (.doc) to
// Markdown blocks through an ordered chain of extraction strategies. Each
// strategy is tried only when the previous one is unavailable or fails.
package doc2md

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"docmark/internal/bytescan"
	"docmark/internal/markdown"
)

// Extraction is what a strategy recovered. Strategies that understand
// structure fill Blocks; the others return Text, which the Extractor runs
// through the plain-text classifier.
type Extraction struct {
	Text   string
	Blocks []markdown.Block
	Images [][]byte
	// Notice records a non-fatal condition worth reporting, such as a
	// missing text marker answered with a recommendation comment.
	Notice error
}

// Strategy is one tier of the legacy extraction chain.
type Strategy interface {
	Name() string
	// Available returns nil when the strategy can run on this host.
	Available() error
	Extract(ctx context.Context, data []byte) (*Extraction, error)
}

// Result is the outcome of a chain run.
type Result struct {
	Blocks   []markdown.Block
	Images   [][]byte
	Strategy string
	// Diagnostics lists why earlier tiers were skipped or failed, plus any
	// notice from the winning tier.
	Diagnostics []error
}

// Extractor runs its strategies in order.
type Extractor struct {
	Strategies []Strategy
}

// NewExtractor returns the default chain: native automation, the binary
// heuristic, then the byte scan.
func NewExtractor(native *NativeAutomation) *Extractor {
	var chain []Strategy
	if native != nil {
		chain = append(chain, native)
	}
	chain = append(chain, HeuristicBinary{}, ByteScan{})
	return &Extractor{Strategies: chain}
}

// Extract returns the result of the first strategy that produced content.
// The error is non-nil only when every strategy failed.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	var diags []error
	for _, s := range e.Strategies {
		if err := s.Available(); err != nil {
			diags = append(diags, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		ext, err := runStrategy(ctx, s, data)
		if err != nil {
			log.Printf("[DOC] %s tier failed: %v", s.Name(), err)
			diags = append(diags, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		blocks := ext.Blocks
		if blocks == nil {
			blocks = markdown.Classify(ext.Text, false)
		}
		if len(blocks) == 0 {
			diags = append(diags, fmt.Errorf("%s: no text recovered", s.Name()))
			continue
		}
		if ext.Notice != nil {
			diags = append(diags, fmt.Errorf("%s: %w", s.Name(), ext.Notice))
		}
		return &Result{
			Blocks:      blocks,
			Images:      ext.Images,
			Strategy:    s.Name(),
			Diagnostics: diags,
		}, nil
	}
	if len(diags) == 0 {
		return nil, errors.New("doc: no extraction strategies configured")
	}
	return nil, fmt.Errorf("doc: all strategies failed: %w", errors.Join(diags...))
}

// runStrategy calls s.Extract and turns a panic into an error.
func runStrategy(ctx context.Context, s Strategy, data []byte) (ext *Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Extract(ctx, data)
}

// ByteScan is the last tier: it keeps printable ASCII runs and needs no
// understanding of the container.
type ByteScan struct{}

func (ByteScan) Name() string     { return "bytescan" }
func (ByteScan) Available() error { return nil }

func (ByteScan) Extract(_ context.Context, data []byte) (*Extraction, error) {
	text := bytescan.ScanText(data)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no printable text")
	}
	return &Extraction{Text: text}, nil
}
