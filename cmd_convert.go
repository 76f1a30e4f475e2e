package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"docmark/internal/config"
	"docmark/internal/doc2md"
	"docmark/internal/images"
	"docmark/internal/parser"
	"docmark/internal/pdf2md"
)

// convertFlags maps convert flags to the config keys they override.
var convertFlags = map[string]string{
	"images":         "images.mode",
	"image-dir":      "images.dir",
	"url-prefix":     "images.url_prefix",
	"native":         "legacy.native",
	"soffice":        "legacy.soffice_path",
	"timeout":        "legacy.timeout_seconds",
	"line-threshold": "pdf.line_threshold",
	"pdf-images":     "pdf.extract_images",
}

// manifest describes one conversion. The manifest file holds one entry per
// input, in argument order.
type manifest struct {
	Source      string          `yaml:"source"`
	Format      parser.Format   `yaml:"format"`
	Output      string          `yaml:"output,omitempty"`
	Images      []manifestImage `yaml:"images,omitempty"`
	Diagnostics []string        `yaml:"diagnostics,omitempty"`
}

type manifestImage struct {
	ID        string `yaml:"id"`
	MIMEType  string `yaml:"mime_type"`
	Bytes     int    `yaml:"bytes"`
	Inline    bool   `yaml:"inline"`
	Reference string `yaml:"reference,omitempty"`
}

func (a *app) newConvertCmd() *cobra.Command {
	var formatName, output, outputDir, manifestPath string
	var jobs int

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert documents to Markdown",
		Long: `Convert writes the Markdown rendering of a .doc, .docx or PDF file to
stdout, or to --output. Use "-" to read the document from stdin. Several
files can be converted at once with --output-dir; each is written there as
<name>.md, up to --jobs at a time.

The format is detected from the content unless --format is given. Images
are inlined as data URIs by default; with --images dir they are written to
--image-dir under random names and referenced relative to it.

A document that cannot be converted still produces output: a single
Markdown comment stating why. The command then exits with status 1.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parser.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if len(args) > 1 {
				if outputDir == "" {
					return errors.New("converting several files requires --output-dir")
				}
				if output != "" {
					return errors.New("--output takes a single input; use --output-dir")
				}
				if slices.Contains(args, "-") {
					return errors.New("stdin cannot be combined with other inputs")
				}
			}
			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}

			cfg := *a.cfg
			if cmd.Flags().Changed("image-dir") && !a.v.IsSet("images.mode") {
				cfg.Images.Mode = config.ImageModeDir
			}
			opts := optionsFrom(&cfg)

			results, err := convertAll(cmd.Context(), cmd.InOrStdin(), args, format, opts, jobs)
			if err != nil {
				return err
			}

			var entries []manifest
			var failed []string
			for i, src := range args {
				res := results[i]
				dest := output
				if outputDir != "" {
					dest = filepath.Join(outputDir, markdownName(src))
				}
				if err := writeMarkdown(cmd.OutOrStdout(), dest, res.Markdown); err != nil {
					return err
				}
				entries = append(entries, newManifest(src, dest, res))
				for _, d := range res.Diagnostics {
					fmt.Fprintf(cmd.ErrOrStderr(), "docmark: %s: %s\n", src, d)
				}
				if res.Failed() {
					failed = append(failed, src)
				}
			}
			if manifestPath != "" {
				if err := writeManifest(manifestPath, entries); err != nil {
					return err
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("conversion failed: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&formatName, "format", "", "input format: doc, docx or pdf (default: detect)")
	f.StringVarP(&output, "output", "o", "", "write Markdown to this file instead of stdout")
	f.StringVar(&outputDir, "output-dir", "", "write each input as <name>.md in this directory")
	f.IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "number of files converted concurrently")
	f.StringVar(&manifestPath, "manifest", "", "write a YAML manifest of outputs, images and diagnostics to this file")
	f.String("images", config.ImageModeInline, "image handling: inline or dir")
	f.String("image-dir", "images", "directory for extracted images in dir mode")
	f.String("url-prefix", "", "prefix for image references in dir mode (default: base name of --image-dir)")
	f.String("native", config.NativeAuto, "office automation for .doc files: auto or off")
	f.String("soffice", "", "path to the LibreOffice soffice binary")
	f.Int("timeout", int(doc2md.DefaultNativeTimeout/time.Second), "office automation timeout in seconds")
	f.Float64("line-threshold", pdf2md.DefaultLineThreshold, "vertical distance in points that starts a new PDF line")
	f.Bool("pdf-images", true, "extract images from PDF pages")

	for name, key := range convertFlags {
		if err := a.v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

// convertAll converts every source, up to jobs at a time, and returns the
// results in argument order. Conversions themselves never fail; the error
// is set only when ctx is cancelled.
func convertAll(ctx context.Context, stdin io.Reader, srcs []string, format parser.Format, opts parser.Options, jobs int) ([]*parser.Result, error) {
	results := make([]*parser.Result, len(srcs))
	dp := &parser.DocumentParser{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, src := range srcs {
		if gctx.Err() != nil {
			break
		}
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if src == "-" {
				results[i] = dp.ConvertReader(gctx, stdin, format, opts)
			} else {
				results[i] = dp.ConvertFile(gctx, src, format, opts)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("conversion interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion interrupted: %w", err)
	}
	return results, nil
}

// optionsFrom translates the effective configuration into conversion
// options.
func optionsFrom(cfg *config.Config) parser.Options {
	mode := images.Inline()
	if cfg.Images.Mode == config.ImageModeDir {
		mode = images.Directory(cfg.Images.Dir).WithURLPrefix(cfg.Images.URLPrefix)
	}
	var native *doc2md.NativeAutomation
	if cfg.Legacy.Native != config.NativeOff {
		native = &doc2md.NativeAutomation{
			Binary:  cfg.Legacy.SofficePath,
			Timeout: time.Duration(cfg.Legacy.TimeoutSeconds) * time.Second,
		}
	}
	return parser.Options{
		Images: mode,
		PDF: pdf2md.Options{
			LineThreshold: cfg.PDF.LineThreshold,
			ExtractImages: cfg.PDF.ExtractImages,
		},
		Native: native,
	}
}

func writeMarkdown(stdout io.Writer, path, md string) error {
	if path == "" {
		_, err := io.WriteString(stdout, md)
		return err
	}
	if err := os.WriteFile(path, []byte(md), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// markdownName is the output file name for src in --output-dir.
func markdownName(src string) string {
	if src == "-" {
		return "stdin.md"
	}
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".md"
}

func newManifest(src, output string, res *parser.Result) manifest {
	m := manifest{
		Source:      src,
		Format:      res.Format,
		Output:      output,
		Diagnostics: res.Diagnostics,
	}
	for _, img := range res.Images {
		mi := manifestImage{
			ID:       img.ID,
			MIMEType: img.MIMEType,
			Bytes:    len(img.Data),
			Inline:   strings.HasPrefix(img.Reference, "data:"),
		}
		if !mi.Inline {
			mi.Reference = img.Reference
		}
		m.Images = append(m.Images, mi)
	}
	return m
}

func writeManifest(path string, entries []manifest) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
