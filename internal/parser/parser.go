// Package parser dispatches a document to the conversion pipeline for its
// format and turns the resulting blocks into a Markdown string, placing the
// extracted images along the way.
package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"docmark/internal/doc2md"
	"docmark/internal/docx2md"
	"docmark/internal/errlog"
	"docmark/internal/images"
	"docmark/internal/markdown"
	"docmark/internal/pdf2md"
)

// Options controls one conversion. The zero value inlines images, uses the
// default PDF settings and skips native office automation.
type Options struct {
	Images images.Mode
	PDF    pdf2md.Options
	// Native is the office automation tier for legacy documents. Nil
	// disables it.
	Native *doc2md.NativeAutomation
}

// DefaultOptions inlines images and looks for a local office install.
func DefaultOptions() Options {
	return Options{
		Images: images.Inline(),
		PDF:    pdf2md.DefaultOptions(),
		Native: &doc2md.NativeAutomation{},
	}
}

// Result is the outcome of a conversion.
type Result struct {
	Markdown string          `json:"markdown" yaml:"-"`
	Images   []*images.Asset `json:"-" yaml:"-"`
	Format   Format          `json:"format" yaml:"format"`
	// Diagnostics explains degraded output: failed tiers, skipped images,
	// or the reason a conversion failed outright.
	Diagnostics []string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Failed reports whether the conversion produced only the failure comment.
func (r *Result) Failed() bool {
	return strings.HasPrefix(r.Markdown, "<!-- "+failurePrefix)
}

const failurePrefix = "conversion failed: "

// DocumentParser converts documents to Markdown. It holds no state and is
// safe for concurrent use.
type DocumentParser struct{}

// Convert converts data. An Unknown format is sniffed from the bytes.
// Convert never panics and never fails: the worst case is a result whose
// Markdown is a single comment stating that conversion failed.
func (dp *DocumentParser) Convert(data []byte, format Format, opts Options) *Result {
	return dp.ConvertContext(context.Background(), data, format, opts)
}

// ConvertReader reads r fully and converts the bytes.
func (dp *DocumentParser) ConvertReader(ctx context.Context, r io.Reader, format Format, opts Options) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return dp.failed(format, fmt.Errorf("read input: %w", err), nil)
	}
	return dp.ConvertContext(ctx, data, format, opts)
}

// ConvertFile converts the file at path, using its name to break ties when
// the content does not identify the format.
func (dp *DocumentParser) ConvertFile(ctx context.Context, path string, format Format, opts Options) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return dp.failed(format, fmt.Errorf("read input: %w", err), nil)
	}
	if format == Unknown {
		format = DetectFormat(data, path)
	}
	return dp.ConvertContext(ctx, data, format, opts)
}

// ConvertContext is Convert with a context bounding the native office tier.
func (dp *DocumentParser) ConvertContext(ctx context.Context, data []byte, format Format, opts Options) *Result {
	if format == Unknown {
		format = DetectFormat(data, "")
	}

	col := &images.Collector{}
	blocks, diags, err := dp.run(ctx, data, format, opts, col)
	if err != nil {
		return dp.failed(format, err, diags)
	}

	res := &Result{Format: format, Diagnostics: diags}
	refs := dp.placeImages(col.Assets(), opts.Images, res)
	res.Images = col.Assets()
	res.Markdown = markdown.Render(blocks, func(id string) string {
		if ref, ok := refs[id]; ok {
			return ref
		}
		return id
	})
	dp.report(res)
	return res
}

// run selects the pipeline. A panic anywhere below is returned as an error.
func (dp *DocumentParser) run(ctx context.Context, data []byte, format Format, opts Options, col *images.Collector) (blocks []markdown.Block, diags []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			blocks = nil
			err = fmt.Errorf("%s: panic: %v", format, r)
		}
	}()

	switch format {
	case PDF:
		blocks, err = pdf2md.Convert(data, opts.PDF, col)
		if err != nil {
			return nil, nil, fmt.Errorf("pdf: %w", err)
		}
	case StructuredPackage:
		blocks, err = docx2md.Convert(data, col)
		if err != nil {
			return nil, nil, fmt.Errorf("docx: %w", err)
		}
	case LegacyBinary:
		res, err := doc2md.NewExtractor(opts.Native).Extract(ctx, data)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range res.Diagnostics {
			diags = append(diags, d.Error())
		}
		log.Printf("[DOC] extracted with %s tier", res.Strategy)
		blocks = res.Blocks
		for _, img := range res.Images {
			blocks = append(blocks, markdown.ImageRef{AssetID: col.Add(img).ID})
		}
	default:
		return nil, nil, fmt.Errorf("unrecognised document format")
	}
	return blocks, diags, nil
}

// placeImages resolves every asset. An image that cannot be written is
// inlined instead and noted in the diagnostics.
func (dp *DocumentParser) placeImages(assets []*images.Asset, mode images.Mode, res *Result) map[string]string {
	refs := make(map[string]string, len(assets))
	for _, a := range assets {
		ref, err := images.Resolve(a, mode)
		if err != nil {
			log.Printf("[Image] %s written inline: %v", a.ID, err)
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("image %s inlined: %v", a.ID, err))
			ref = images.DataURI(a)
		}
		a.Reference = ref
		refs[a.ID] = ref
	}
	return refs
}

func (dp *DocumentParser) failed(format Format, err error, diags []string) *Result {
	log.Printf("[Convert] %s conversion failed: %v", format, err)
	res := &Result{
		Format:      format,
		Diagnostics: append(diags, err.Error()),
		Markdown:    markdown.Render([]markdown.Block{markdown.RawComment{Text: failurePrefix + err.Error()}}, nil),
	}
	dp.report(res)
	return res
}

// report copies diagnostics to the error log when one is open.
func (dp *DocumentParser) report(res *Result) {
	for _, d := range res.Diagnostics {
		errlog.Logf("[Convert] %s: %s", res.Format, d)
	}
}
